package bootstrap

// token is a single byte drawn from the fixed sync alphabet (spec §3).
type token byte

const (
	tokenUsermapPls  token = 0x40 // "please install my uid/gid map"
	tokenUsermapAck  token = 0x41 // "map installed; proceed"
	tokenGrandchild  token = 0x44 // "Stage-2 may now perform post-namespace setup"
	tokenChildFinish token = 0x45 // "Stage-2 setup complete"
)

func (t token) String() string {
	switch t {
	case tokenUsermapPls:
		return "USERMAP_PLS"
	case tokenUsermapAck:
		return "USERMAP_ACK"
	case tokenGrandchild:
		return "GRANDCHILD"
	case tokenChildFinish:
		return "CHILD_FINISH"
	default:
		return "UNKNOWN_TOKEN"
	}
}
