package transport

// Inbound is the payload of a completed read: the reader holding the staged
// bytes and how many of them this completion delivered.
type Inbound interface {
	Reader() (r InboundReader)
	Received() (n int)
}

func NewInbound(r InboundReader, n int) Inbound {
	return inbound{
		r: r,
		n: n,
	}
}

type inbound struct {
	r InboundReader
	n int
}

func (in inbound) Reader() (r InboundReader) {
	r = in.r
	return
}

func (in inbound) Received() (n int) {
	n = in.n
	return
}
