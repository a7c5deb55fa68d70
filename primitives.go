package zenoh

// Primitives is the set of application-visible operations of the fabric:
// declarations, data publication, queries, replies and pulls.
type Primitives interface {
	DeclResource(rid ZInt, key ResKey)
	ForgetResource(rid ZInt)

	DeclPublisher(key ResKey)
	ForgetPublisher(key ResKey)

	DeclSubscriber(key ResKey, info SubInfo)
	ForgetSubscriber(key ResKey)

	DeclQueryable(key ResKey, kind ZInt)
	ForgetQueryable(key ResKey)

	SendData(key ResKey, payload Payload, ch Channel, cc CongestionControl, info *DataInfo)
	SendQuery(key ResKey, predicate string, qid ZInt, target ZInt, consolidation ZInt)
	SendReplyData(qid ZInt, replierKind ZInt, replierID PeerID, key ResKey, info *DataInfo, payload Payload)
	SendReplyFinal(qid ZInt)
	SendPull(isFinal bool, key ResKey, pullID ZInt, maxSamples *ZInt)
	SendClose()
}

// Queryable kinds.
const (
	QueryableAllKinds ZInt = 0x01
	QueryableStorage  ZInt = 0x02
	QueryableEval     ZInt = 0x04
)
