package proto

import (
	"strconv"
	"strings"

	"github.com/fossabot/zenoh/internal/zerror"
)

// Encoding identifiers. The table is closed: the wire carries the index,
// never the MIME string.
const (
	EncAppOctetStream        ZInt = 0
	EncAppCustom             ZInt = 1 // non iana standard
	EncTextPlain             ZInt = 2
	EncAppProperties         ZInt = 3 // non iana standard
	EncAppJSON               ZInt = 4
	EncAppSQL                ZInt = 5
	EncAppInteger            ZInt = 6 // non iana standard
	EncAppFloat              ZInt = 7 // non iana standard
	EncAppXML                ZInt = 8
	EncAppXHTMLXML           ZInt = 9
	EncAppXWWWFormURLEncoded ZInt = 10
	EncTextJSON              ZInt = 11 // non iana standard
	EncTextHTML              ZInt = 12
	EncTextXML               ZInt = 13
	EncTextCSS               ZInt = 14
	EncTextCSV               ZInt = 15
	EncTextJavascript        ZInt = 16
	EncImageJPEG             ZInt = 17
	EncImagePNG              ZInt = 18
	EncImageGIF              ZInt = 19

	EncNone    = EncAppOctetStream
	EncString  = EncTextPlain
	EncDefault = EncAppOctetStream
)

// mimes is the process-wide immutable encoding table, indexed by encoding id.
var mimes = [20]string{
	"application/octet-stream",
	"application/custom",
	"text/plain",
	"application/properties",
	"application/json",
	"application/sql",
	"application/integer",
	"application/float",
	"application/xml",
	"application/xhtml+xml",
	"application/x-www-form-urlencoded",
	"text/json",
	"text/html",
	"text/xml",
	"text/css",
	"text/csv",
	"text/javascript",
	"image/jpeg",
	"image/png",
	"image/gif",
}

// mimeIndex is built once from the table for reverse lookups.
var mimeIndex = func() map[string]ZInt {
	m := make(map[string]ZInt, len(mimes))
	for i, s := range mimes {
		m[s] = ZInt(i)
	}
	return m
}()

// ToMime returns the MIME string of an encoding id.
func ToMime(i ZInt) (string, error) {
	if i >= ZInt(len(mimes)) {
		return "", zerror.Newf(zerror.KindOther, "unknown encoding id %d", i)
	}
	return mimes[i], nil
}

// EncodingString renders an encoding id for humans. Unknown ids render as
// their decimal value.
func EncodingString(i ZInt) string {
	if s, err := ToMime(i); err == nil {
		return s
	}
	return strconv.FormatUint(i, 10)
}

// EncodingFromString resolves a MIME string to an encoding id. MIME
// parameters after ';' are ignored.
func EncodingFromString(s string) (ZInt, error) {
	s, _, _ = strings.Cut(s, ";")
	if i, ok := mimeIndex[s]; ok {
		return i, nil
	}
	return 0, zerror.Newf(zerror.KindOther, "unknown encoding %q", s)
}
