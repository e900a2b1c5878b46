package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadKnownVariants(t *testing.T) {
	testCases := []struct {
		kind  string
		body  string
		check func(t *testing.T, p TxPayload)
	}{
		{
			kind: PayloadTransfer,
			body: `{"to":"0x0101","amount":"1000"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.Transfer)
				assert.Equal(t, HexBytes{0x01, 0x01}, p.Transfer.To)
				assert.Equal(t, "1000", p.Transfer.Amount)
			},
		},
		{
			kind: PayloadStake,
			body: `{"amount":"42"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.Stake)
				assert.Equal(t, "42", p.Stake.Amount)
			},
		},
		{
			kind: PayloadUnstake,
			body: `{"amount":"7"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.Unstake)
			},
		},
		{
			kind: PayloadDelegate,
			body: `{"validator":"0xbeef","amount":"5"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.Delegate)
				assert.Equal(t, HexBytes{0xbe, 0xef}, p.Delegate.Validator)
			},
		},
		{
			kind: PayloadUndelegate,
			body: `{"validator":"0xbeef","amount":"5"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.Undelegate)
			},
		},
		{
			kind: PayloadDomainCreate,
			body: `{"domain_id":"dom-1","params":{"max_batch":10}}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.DomainCreate)
				assert.Equal(t, "dom-1", p.DomainCreate.DomainId)
			},
		},
		{
			kind: PayloadDomainConfigUpdate,
			body: `{"domain_id":"dom-1","params":{}}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.DomainConfigUpdate)
			},
		},
		{
			kind: PayloadRollupBatchCommit,
			body: `{"domain_id":"dom-1","blob_id":"blob-9"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.RollupBatchCommit)
				assert.Equal(t, "blob-9", p.RollupBatchCommit.BlobId)
			},
		},
		{
			kind: PayloadRollupBridgeDeposit,
			body: `{"domain_id":"dom-1","amount":"12"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.RollupBridgeDeposit)
			},
		},
		{
			kind: PayloadRollupBridgeWithdraw,
			body: `{"domain_id":"dom-1","amount":"12"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.RollupBridgeWithdraw)
			},
		},
		{
			kind: PayloadGovernanceProposal,
			body: `{"payload":{"title":"raise gas limit"}}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.GovernanceProposal)
			},
		},
		{
			kind: PayloadGovernanceVote,
			body: `{"proposal_id":3,"support":true,"weight":"100"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.GovernanceVote)
				assert.Equal(t, int64(3), p.GovernanceVote.ProposalId)
				assert.True(t, p.GovernanceVote.Support)
			},
		},
		{
			kind: PayloadGovernanceExecute,
			body: `{"proposal_id":3}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.GovernanceExecute)
			},
		},
		{
			kind: PayloadPrivacyDeposit,
			body: `{"commitment":"0xaa"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.PrivacyDeposit)
				assert.Equal(t, HexBytes{0xaa}, p.PrivacyDeposit.Commitment)
			},
		},
		{
			kind: PayloadPrivacyWithdraw,
			body: `{"nullifier":"0xbb","recipient":"0xcc"}`,
			check: func(t *testing.T, p TxPayload) {
				require.NotNil(t, p.PrivacyWithdraw)
				assert.Equal(t, HexBytes{0xcc}, p.PrivacyWithdraw.Recipient)
			},
		},
		{
			kind: PayloadSystemUpgrade,
			body: `{"version":"2.0"}`,
			check: func(t *testing.T, p TxPayload) {
				// no typed variant, carried raw
				assert.JSONEq(t, `{"version":"2.0"}`, string(p.Raw))
			},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.kind, func(t *testing.T) {
			p, err := ParsePayload(tt.kind, json.RawMessage(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind)
			tt.check(t, p)

			// the tag travels outside the payload, the body must round-trip
			out, err := json.Marshal(p)
			require.NoError(t, err)
			assert.JSONEq(t, tt.body, string(out))
		})
	}
}

func TestParsePayloadUnknownKindIsOpaque(t *testing.T) {
	body := json.RawMessage(`{"anything":[1,2,3]}`)
	p, err := ParsePayload("future_payload", body)
	require.NoError(t, err)
	assert.Equal(t, "future_payload", p.Kind)
	assert.JSONEq(t, string(body), string(p.Raw))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(out))
}

func TestParsePayloadMalformedKnownKind(t *testing.T) {
	_, err := ParsePayload(PayloadTransfer, json.RawMessage(`{"to":"not-hex"}`))
	assert.Error(t, err)
}

func TestRehydrateAfterJSONDecode(t *testing.T) {
	original, err := ParsePayload(PayloadTransfer, json.RawMessage(`{"to":"0x0a","amount":"9"}`))
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded TxPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Transfer)

	require.NoError(t, decoded.Rehydrate(PayloadTransfer))
	require.NotNil(t, decoded.Transfer)
	assert.Equal(t, "9", decoded.Transfer.Amount)
}

func TestParsePayloadEmptyBody(t *testing.T) {
	p, err := ParsePayload(PayloadSystemUpgrade, nil)
	require.NoError(t, err)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}
