package april

import "fmt"

// ResultType is the kind of result delivered to a Handler. Codes outside the
// known set are kept verbatim so newer engines never lose information.
type ResultType uint32

const (
	ResultUnknown            ResultType = 0
	ResultRecognitionPartial ResultType = 1
	ResultRecognitionFinal   ResultType = 2
	ResultErrorCantKeepUp    ResultType = 3
	ResultSilence            ResultType = 4
)

// ResultTypeFromCode maps a raw engine result code.
func ResultTypeFromCode(code uint32) ResultType {
	return ResultType(code)
}

// Code returns the raw engine code.
func (r ResultType) Code() uint32 {
	return uint32(r)
}

// IsOther reports whether r is outside the known set.
func (r ResultType) IsOther() bool {
	return r > ResultSilence
}

func (r ResultType) String() string {
	switch r {
	case ResultUnknown:
		return "unknown"
	case ResultRecognitionPartial:
		return "partially completed"
	case ResultRecognitionFinal:
		return "final result"
	case ResultErrorCantKeepUp:
		return "can't keep up"
	case ResultSilence:
		return "silence"
	default:
		return fmt.Sprintf("other result %d", uint32(r))
	}
}
