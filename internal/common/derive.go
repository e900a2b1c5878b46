package common

import (
	"encoding/json"
)

// DomainUpsert is the pending write for a domain_create/domain_config_update
// payload. Storage applies it last-write-wins with an advancing updated_at.
type DomainUpsert struct {
	DomainId   string
	RiskParams json.RawMessage
}

// SideEffects are the dependent rows a single transaction produces. TxId and
// BlockHeight are filled in by storage once the transaction row exists.
type SideEffects struct {
	Batch           *RollupBatch
	Governance      *GovernanceEvent
	Privacy         *PrivacyAction
	Domain          *DomainUpsert
	TouchedAccounts []HexBytes
}

// DeriveSideEffects inspects a transaction's payload and returns the rows it
// implies. The sender is always a touched account; counterparties that the
// chain credits (transfer recipient, delegation validator, privacy-withdraw
// recipient) are touched as well.
func DeriveSideEffects(tx *Transaction) SideEffects {
	fx := SideEffects{}
	if len(tx.Sender) > 0 {
		fx.TouchedAccounts = append(fx.TouchedAccounts, tx.Sender)
	}

	p := &tx.Payload
	switch tx.PayloadType {
	case PayloadTransfer:
		if p.Transfer != nil && len(p.Transfer.To) > 0 {
			fx.TouchedAccounts = append(fx.TouchedAccounts, p.Transfer.To)
		}
	case PayloadDelegate:
		if p.Delegate != nil && len(p.Delegate.Validator) > 0 {
			fx.TouchedAccounts = append(fx.TouchedAccounts, p.Delegate.Validator)
		}
	case PayloadUndelegate:
		if p.Undelegate != nil && len(p.Undelegate.Validator) > 0 {
			fx.TouchedAccounts = append(fx.TouchedAccounts, p.Undelegate.Validator)
		}
	case PayloadDomainCreate:
		if p.DomainCreate != nil {
			fx.Domain = &DomainUpsert{DomainId: p.DomainCreate.DomainId, RiskParams: p.DomainCreate.Params}
		}
	case PayloadDomainConfigUpdate:
		if p.DomainConfigUpdate != nil {
			fx.Domain = &DomainUpsert{DomainId: p.DomainConfigUpdate.DomainId, RiskParams: p.DomainConfigUpdate.Params}
		}
	case PayloadRollupBatchCommit:
		if p.RollupBatchCommit != nil {
			fx.Batch = &RollupBatch{
				DomainId:    p.RollupBatchCommit.DomainId,
				BlobId:      p.RollupBatchCommit.BlobId,
				BlockHeight: tx.BlockHeight,
			}
		}
	case PayloadGovernanceProposal:
		if p.GovernanceProposal != nil {
			fx.Governance = &GovernanceEvent{
				Kind:    "proposal",
				Payload: p.GovernanceProposal.Payload,
			}
		}
	case PayloadGovernanceVote:
		if p.GovernanceVote != nil {
			proposalId := p.GovernanceVote.ProposalId
			support := p.GovernanceVote.Support
			weight := p.GovernanceVote.Weight
			fx.Governance = &GovernanceEvent{
				Kind:       "vote",
				ProposalId: &proposalId,
				Support:    &support,
				Weight:     &weight,
			}
		}
	case PayloadGovernanceExecute:
		if p.GovernanceExecute != nil {
			proposalId := p.GovernanceExecute.ProposalId
			fx.Governance = &GovernanceEvent{
				Kind:       "execution",
				ProposalId: &proposalId,
			}
		}
	case PayloadPrivacyDeposit:
		if p.PrivacyDeposit != nil {
			fx.Privacy = &PrivacyAction{
				Action:     "deposit",
				Commitment: p.PrivacyDeposit.Commitment,
			}
		}
	case PayloadPrivacyWithdraw:
		if p.PrivacyWithdraw != nil {
			fx.Privacy = &PrivacyAction{
				Action:    "withdraw",
				Nullifier: p.PrivacyWithdraw.Nullifier,
				Recipient: p.PrivacyWithdraw.Recipient,
			}
			if len(p.PrivacyWithdraw.Recipient) > 0 {
				fx.TouchedAccounts = append(fx.TouchedAccounts, p.PrivacyWithdraw.Recipient)
			}
		}
	}
	return fx
}

// PayloadEvents returns the default event list for a transaction whose node
// response carried none.
func PayloadEvents(payloadType string) []string {
	return []string{payloadType}
}
