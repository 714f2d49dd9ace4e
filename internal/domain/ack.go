package domain

type AckStatus string

const (
	AckStatusOK   AckStatus = "ok"
	AckStatusFail AckStatus = "fail"
)

// AckMessage reports a capture outcome back to the coordinator.
// Detail is the artifact filename on success, the error text on failure.
type AckMessage struct {
	Status AckStatus
	Detail string
}

func (m AckMessage) IsOK() bool {
	return m.Status == AckStatusOK
}

// AckOK builds a success ack carrying the produced artifact name.
func AckOK(artifact string) AckMessage {
	return AckMessage{Status: AckStatusOK, Detail: artifact}
}

// AckFail builds a failure ack carrying the error text.
func AckFail(errText string) AckMessage {
	return AckMessage{Status: AckStatusFail, Detail: errText}
}
