package common

import (
	"encoding/json"
)

// Payload type tags as they appear on the wire and in the payload_type
// column.
const (
	PayloadTransfer             = "transfer"
	PayloadStake                = "stake"
	PayloadUnstake              = "unstake"
	PayloadDelegate             = "delegate"
	PayloadUndelegate           = "undelegate"
	PayloadDomainCreate         = "domain_create"
	PayloadDomainConfigUpdate   = "domain_config_update"
	PayloadRollupBatchCommit    = "rollup_batch_commit"
	PayloadRollupBridgeDeposit  = "rollup_bridge_deposit"
	PayloadRollupBridgeWithdraw = "rollup_bridge_withdraw"
	PayloadGovernanceProposal   = "governance_proposal"
	PayloadGovernanceVote       = "governance_vote"
	PayloadGovernanceExecute    = "governance_execute"
	PayloadPrivacyDeposit       = "privacy_deposit"
	PayloadPrivacyWithdraw      = "privacy_withdraw"
	PayloadSystemUpgrade        = "system_upgrade"
)

type TransferPayload struct {
	To     HexBytes `json:"to"`
	Amount string   `json:"amount"`
}

type StakePayload struct {
	Amount string `json:"amount"`
}

type DelegatePayload struct {
	Validator HexBytes `json:"validator"`
	Amount    string   `json:"amount"`
}

type DomainConfigPayload struct {
	DomainId string          `json:"domain_id"`
	Params   json.RawMessage `json:"params"`
}

type RollupBatchCommitPayload struct {
	DomainId string `json:"domain_id"`
	BlobId   string `json:"blob_id"`
}

type RollupBridgePayload struct {
	DomainId string `json:"domain_id"`
	Amount   string `json:"amount"`
}

type GovernanceProposalPayload struct {
	Payload json.RawMessage `json:"payload"`
}

type GovernanceVotePayload struct {
	ProposalId int64  `json:"proposal_id"`
	Support    bool   `json:"support"`
	Weight     string `json:"weight"`
}

type GovernanceExecutePayload struct {
	ProposalId int64 `json:"proposal_id"`
}

type PrivacyDepositPayload struct {
	Commitment HexBytes `json:"commitment"`
}

type PrivacyWithdrawPayload struct {
	Nullifier HexBytes `json:"nullifier"`
	Recipient HexBytes `json:"recipient"`
}

// TxPayload is a tagged union over the known payload shapes, keyed by the
// transaction's payload_type. Unknown types keep their raw JSON so forward
// incompatible payloads still round-trip through storage untouched.
type TxPayload struct {
	Kind string

	Transfer             *TransferPayload
	Stake                *StakePayload
	Unstake              *StakePayload
	Delegate             *DelegatePayload
	Undelegate           *DelegatePayload
	DomainCreate         *DomainConfigPayload
	DomainConfigUpdate   *DomainConfigPayload
	RollupBatchCommit    *RollupBatchCommitPayload
	RollupBridgeDeposit  *RollupBridgePayload
	RollupBridgeWithdraw *RollupBridgePayload
	GovernanceProposal   *GovernanceProposalPayload
	GovernanceVote       *GovernanceVotePayload
	GovernanceExecute    *GovernanceExecutePayload
	PrivacyDeposit       *PrivacyDepositPayload
	PrivacyWithdraw      *PrivacyWithdrawPayload

	Raw json.RawMessage
}

// ParsePayload decodes a payload body into the variant selected by kind. The
// raw body is always retained; decoding failures for known kinds surface as
// errors because they indicate a malformed block, not a forward-compat case.
func ParsePayload(kind string, body json.RawMessage) (TxPayload, error) {
	p := TxPayload{Kind: kind, Raw: append(json.RawMessage(nil), body...)}
	if len(body) == 0 {
		p.Raw = json.RawMessage("{}")
		return p, nil
	}

	var err error
	switch kind {
	case PayloadTransfer:
		p.Transfer = &TransferPayload{}
		err = json.Unmarshal(body, p.Transfer)
	case PayloadStake:
		p.Stake = &StakePayload{}
		err = json.Unmarshal(body, p.Stake)
	case PayloadUnstake:
		p.Unstake = &StakePayload{}
		err = json.Unmarshal(body, p.Unstake)
	case PayloadDelegate:
		p.Delegate = &DelegatePayload{}
		err = json.Unmarshal(body, p.Delegate)
	case PayloadUndelegate:
		p.Undelegate = &DelegatePayload{}
		err = json.Unmarshal(body, p.Undelegate)
	case PayloadDomainCreate:
		p.DomainCreate = &DomainConfigPayload{}
		err = json.Unmarshal(body, p.DomainCreate)
	case PayloadDomainConfigUpdate:
		p.DomainConfigUpdate = &DomainConfigPayload{}
		err = json.Unmarshal(body, p.DomainConfigUpdate)
	case PayloadRollupBatchCommit:
		p.RollupBatchCommit = &RollupBatchCommitPayload{}
		err = json.Unmarshal(body, p.RollupBatchCommit)
	case PayloadRollupBridgeDeposit:
		p.RollupBridgeDeposit = &RollupBridgePayload{}
		err = json.Unmarshal(body, p.RollupBridgeDeposit)
	case PayloadRollupBridgeWithdraw:
		p.RollupBridgeWithdraw = &RollupBridgePayload{}
		err = json.Unmarshal(body, p.RollupBridgeWithdraw)
	case PayloadGovernanceProposal:
		p.GovernanceProposal = &GovernanceProposalPayload{}
		err = json.Unmarshal(body, p.GovernanceProposal)
	case PayloadGovernanceVote:
		p.GovernanceVote = &GovernanceVotePayload{}
		err = json.Unmarshal(body, p.GovernanceVote)
	case PayloadGovernanceExecute:
		p.GovernanceExecute = &GovernanceExecutePayload{}
		err = json.Unmarshal(body, p.GovernanceExecute)
	case PayloadPrivacyDeposit:
		p.PrivacyDeposit = &PrivacyDepositPayload{}
		err = json.Unmarshal(body, p.PrivacyDeposit)
	case PayloadPrivacyWithdraw:
		p.PrivacyWithdraw = &PrivacyWithdrawPayload{}
		err = json.Unmarshal(body, p.PrivacyWithdraw)
	default:
		// opaque variant, Raw already holds the body
	}
	if err != nil {
		return TxPayload{}, err
	}
	return p, nil
}

// MarshalJSON emits the payload body (not the tag); the tag travels in the
// transaction's payload_type field.
func (p TxPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal(struct{}{})
}

func (p *TxPayload) UnmarshalJSON(data []byte) error {
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Rehydrate re-parses the typed variant after the payload has been decoded
// from JSON, where only Raw and the external payload_type tag are available.
func (p *TxPayload) Rehydrate(kind string) error {
	parsed, err := ParsePayload(kind, p.Raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
