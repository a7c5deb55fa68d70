package proto

import "strconv"

// Data kinds. Unknown integers pass through as opaque values.
const (
	KindPut    ZInt = 0
	KindPatch  ZInt = 1
	KindDelete ZInt = 2

	KindDefault = KindPut
)

// DataKindString renders a data kind for humans.
func DataKindString(i ZInt) string {
	switch i {
	case KindPut:
		return "PUT"
	case KindPatch:
		return "PATCH"
	case KindDelete:
		return "DELETE"
	default:
		return strconv.FormatUint(i, 10)
	}
}
