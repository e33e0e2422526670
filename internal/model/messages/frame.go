package messages

// Frame is the unit carried on the transport channel: either a report or
// the end-of-stream marker. The zero Frame is neither and is ignored.
type Frame struct {
	Report Report
	kind   frameKind
}

type frameKind uint8

const (
	kindNone frameKind = iota
	kindReport
	kindEnd
)

func ReportFrame(r Report) Frame { return Frame{Report: r, kind: kindReport} }

// EndOfStream marks that the producer will send nothing more.
func EndOfStream() Frame { return Frame{kind: kindEnd} }

func (f Frame) IsReport() bool { return f.kind == kindReport }

func (f Frame) IsEnd() bool { return f.kind == kindEnd }
