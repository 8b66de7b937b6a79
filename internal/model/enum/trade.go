package enum

// Conclusion is the execution notification class reported by the broker.
// Codes "1" concluded, "2" confirmed, "3" rejected, "4" received.
type Conclusion uint8

const (
	_conclusion_beg Conclusion = iota
	ConclusionConcluded
	ConclusionConfirmed
	ConclusionRejected
	ConclusionReceived
	_conclusion_end
)

func (c Conclusion) IsAvailable() bool {
	return c > _conclusion_beg && c < _conclusion_end
}

func (c Conclusion) String() string {
	switch c {
	case ConclusionConcluded:
		return "CONCLUDED"
	case ConclusionConfirmed:
		return "CONFIRMED"
	case ConclusionRejected:
		return "REJECTED"
	case ConclusionReceived:
		return "RECEIVED"
	default:
		return "UNKNOWN"
	}
}

func (c Conclusion) MarshalJSON() ([]byte, error) {
	return marshalName(c.String())
}

func (c *Conclusion) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseConclusion(name)
	if !ok {
		return errUnknownEnumName
	}
	*c = parsed
	return nil
}

func ParseConclusion(name string) (Conclusion, bool) {
	switch name {
	case "CONCLUDED":
		return ConclusionConcluded, true
	case "CONFIRMED":
		return ConclusionConfirmed, true
	case "REJECTED":
		return ConclusionRejected, true
	case "RECEIVED":
		return ConclusionReceived, true
	default:
		return 0, false
	}
}

// ModifyCancel distinguishes plain orders from modify and cancel orders.
// Codes "1" none, "2" modify, "3" cancel.
type ModifyCancel uint8

const (
	_modify_cancel_beg ModifyCancel = iota
	ModifyCancelNone
	ModifyCancelModify
	ModifyCancelCancel
	_modify_cancel_end
)

func (m ModifyCancel) IsAvailable() bool {
	return m > _modify_cancel_beg && m < _modify_cancel_end
}

func (m ModifyCancel) String() string {
	switch m {
	case ModifyCancelNone:
		return "NONE"
	case ModifyCancelModify:
		return "MODIFY"
	case ModifyCancelCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

func (m ModifyCancel) MarshalJSON() ([]byte, error) {
	return marshalName(m.String())
}

func (m *ModifyCancel) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseModifyCancel(name)
	if !ok {
		return errUnknownEnumName
	}
	*m = parsed
	return nil
}

func ParseModifyCancel(name string) (ModifyCancel, bool) {
	switch name {
	case "NONE":
		return ModifyCancelNone, true
	case "MODIFY":
		return ModifyCancelModify, true
	case "CANCEL":
		return ModifyCancelCancel, true
	default:
		return 0, false
	}
}
