package swapscript

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func buildFundingTx(t *testing.T, pubA, pubB *btcec.PublicKey, amt btcutil.Amount) *wire.MsgTx {
	t.Helper()
	_, out, err := FundingOutput(pubA, pubB, amt)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0}})
	tx.AddTxOut(out)
	return tx
}

func TestValidateFundingTxFindsOutput(t *testing.T) {
	privA := randKey(t)
	privB := randKey(t)
	amt := btcutil.Amount(500_000)

	fundingTx := buildFundingTx(t, privA.PubKey(), privB.PubKey(), amt)
	// Prepend a decoy output to make sure the index is found, not assumed.
	decoy := &wire.TxOut{Value: 1234, PkScript: []byte{0x00}}
	fundingTx.TxOut = append([]*wire.TxOut{decoy}, fundingTx.TxOut...)

	idx, err := ValidateFundingTx(fundingTx, privA.PubKey(), privB.PubKey(), amt)
	require.NoError(t, err)
	require.EqualValues(t, 1, idx)
}

func TestValidateFundingTxWrongAmount(t *testing.T) {
	privA := randKey(t)
	privB := randKey(t)

	fundingTx := buildFundingTx(t, privA.PubKey(), privB.PubKey(), 500_000)

	_, err := ValidateFundingTx(fundingTx, privA.PubKey(), privB.PubKey(), 500_001)
	require.Error(t, err)
}

func TestValidateContractTxWithTimelock(t *testing.T) {
	hashlockPriv := randKey(t)
	timelockPriv := randKey(t)
	preimage := randHash(t)
	fundingAmt := btcutil.Amount(500_000)
	fee := btcutil.Amount(500)

	exp := ExpectedContract{
		FundingOutpoint: wire.OutPoint{Index: 0},
		FundingAmount:   fundingAmt,
		HashX160:        Hash160FromPreimage(preimage),
		TimelockPubkey:  timelockPriv.PubKey(),
		MinLocktime:     100,
		HashlockPubkey:  hashlockPriv.PubKey(),
	}

	_, out, err := ContractOutput(ContractParams{
		HashlockPubkey: exp.HashlockPubkey,
		TimelockPubkey: exp.TimelockPubkey,
		Hash160:        exp.HashX160,
		Timelock:       144,
	}, fundingAmt-fee)
	require.NoError(t, err)

	contractTx := wire.NewMsgTx(2)
	contractTx.AddTxIn(&wire.TxIn{PreviousOutPoint: exp.FundingOutpoint})
	contractTx.AddTxOut(out)

	require.NoError(t, ValidateContractTxWithTimelock(contractTx, exp, 144, fee))

	// Below min_locktime must be rejected.
	require.Error(t, ValidateContractTxWithTimelock(contractTx, exp, 50, fee))

	// Zero fee tolerance must reject our `fee`-sized deduction.
	require.Error(t, ValidateContractTxWithTimelock(contractTx, exp, 144, 0))
}
