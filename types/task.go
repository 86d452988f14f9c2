package types

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/hibiken/asynq"
)

var (
	QueueTypeContactRefresh = "contact:refresh"
	QueueTypeKeyRecheck     = "keys:recheck"
)

// ContactRefreshTask re-fetches a contacts remote detail when the locally
// stored cards carry no sending-preference metadata.
type ContactRefreshTask struct {
	OwnerAddress string `cbor:"1,keyasint" json:"ownerAddress"`
	Email        string `cbor:"2,keyasint" json:"email" validate:"required"`
}

// KeyRecheckTask re-fetches the key directory entry for a contact with
// pinned keys and flags fingerprints that turned compromised since pinning.
type KeyRecheckTask struct {
	OwnerAddress string `cbor:"1,keyasint" json:"ownerAddress"`
	Email        string `cbor:"2,keyasint" json:"email" validate:"required"`
}

func NewContactRefreshTask(task *ContactRefreshTask) (*asynq.Task, error) {
	payload, err := cbor.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeContactRefresh, payload), nil
}

func NewKeyRecheckTask(task *KeyRecheckTask) (*asynq.Task, error) {
	payload, err := cbor.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeKeyRecheck, payload), nil
}
