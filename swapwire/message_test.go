package swapwire

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func randPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func randSig(t *testing.T) *ecdsa.Signature {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var digest [32]byte
	_, err = rand.Read(digest[:])
	require.NoError(t, err)
	return ecdsa.Sign(priv, digest[:])
}

func randHash160(t *testing.T) [20]byte {
	t.Helper()
	var h [20]byte
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func randHash32(t *testing.T) [32]byte {
	t.Helper()
	var h [32]byte
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func randTx(t *testing.T) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 1}})
	tx.AddTxOut(&wire.TxOut{Value: 50_000, PkScript: []byte{0x00, 0x14}})
	return tx
}

func randContractTemplate(t *testing.T) ContractTxTemplate {
	t.Helper()
	return ContractTxTemplate{
		ContractTx:      randTx(t),
		FundingOutpoint: wire.OutPoint{Hash: randHash32(t), Index: 0},
		FundingAmount:   500_000,
		HashlockPubkey:  randPubKey(t),
		TimelockPubkey:  randPubKey(t),
		HashX160:        randHash160(t),
		Timelock:        144,
	}
}

func randFundingInfo(t *testing.T) FundingInfo {
	t.Helper()
	return FundingInfo{
		FundingTx:    randTx(t),
		OutputIndex:  0,
		RedeemScript: []byte{0x52, 0x21, 0x02, 0x52, 0xae},
	}
}

// roundTrip serializes msg via WriteMessage, reads it back via ReadMessage
// and asserts the result is deeply equal to the original.
func roundTrip(t *testing.T, msg Message) {
	t.Helper()

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg)
	require.NoError(t, err)

	got, err := ReadMessage(&buf)
	require.NoError(t, err)

	if !reflect.DeepEqual(msg, got) {
		t.Fatalf("message mismatch after round trip:\nwant: %s\ngot:  %s",
			spew.Sdump(msg), spew.Sdump(got))
	}
}

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Message{
		&TakerHello{Version: ProtocolVersion},
		&MakerHello{Version: ProtocolVersion},
		&ReqOffer{},
		&RespOffer{
			Offer: Offer{
				OnionAddress: "exampleonionaddress1234.onion",
				Fee: FeeModel{
					AbsoluteFeeSats:       500,
					AmountRelativeFeePPM:  100,
					TimeRelativeFeeSatsPB: 1,
					MinSwapAmount:         10_000,
					MaxSwapAmount:         10_000_000,
					MinLocktime:           100,
				},
				ExpiryHeight: 800_000,
			},
			Bond: Bond{
				Outpoint:       wire.OutPoint{Hash: randHash32(t), Index: 0},
				LockedAmount:   1_000_000,
				LocktimeHeight: 900_000,
				BondPubkey:     randPubKey(t),
			},
			BondSig: randSig(t),
		},
		&ReqContractSigsForSender{
			ContractTxTemplates: []ContractTxTemplate{randContractTemplate(t), randContractTemplate(t)},
			Fundings:            []FundingInfo{randFundingInfo(t)},
		},
		&RespContractSigsForSender{
			Sigs: []*ecdsa.Signature{randSig(t), randSig(t)},
		},
		&RespProofOfFunding{
			Fundings:              []FundingInfo{randFundingInfo(t), randFundingInfo(t)},
			Confirmations:         []uint32{1, 2},
			MultisigRedeemScripts: [][]byte{{0x52, 0xae}, {0x51, 0xae}},
			NextHopData: NextHopData{
				HopIndex:              1,
				SendAmount:            500_000,
				Timelock:              124,
				HashX160:              randHash160(t),
				HasCounterpartyPubkey: true,
				CounterpartyPubkey:    randPubKey(t),
			},
		},
		&ReqContractSigsAsRecvrAndSender{
			SenderContracts:   []ContractTxTemplate{randContractTemplate(t)},
			SenderFundings:    []FundingInfo{randFundingInfo(t)},
			ReceiverContracts: []ContractTxTemplate{randContractTemplate(t)},
		},
		&RespContractSigsForReceiverAndSender{
			SenderSigs:   []*ecdsa.Signature{randSig(t)},
			ReceiverSigs: []*ecdsa.Signature{randSig(t)},
		},
		&ReqContractSigsForReceiver{
			ContractTxs: []ContractTxTemplate{randContractTemplate(t)},
		},
		&RespContractSigsForReceiver{
			Sigs: []*ecdsa.Signature{randSig(t)},
		},
		&RespHashPreimage{
			Preimage:                  randHash32(t),
			HasNextHopMultisigPrivkey: true,
			NextHopMultisigPrivkey:    randHash32(t),
		},
		&RespHashPreimage{
			Preimage:                  randHash32(t),
			HasNextHopMultisigPrivkey: false,
		},
		&RespPrivKeyHandover{
			Privkeys: [][32]byte{randHash32(t), randHash32(t)},
		},
		&Error{
			Kind:   ErrKindValidation,
			Reason: "hashlock pubkey does not match tweaked receiver key",
		},
		&ReqReceiverPubkeys{},
		&RespReceiverPubkeys{
			FundingPubkey:  randPubKey(t),
			HashlockPubkey: randPubKey(t),
		},
	}

	for _, msg := range cases {
		msg := msg
		t.Run(msg.MsgType().String(), func(t *testing.T) {
			t.Parallel()
			roundTrip(t, msg)
		})
	}
}

func TestReadMessageUnknownType(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := buf.Write([]byte{0x00, 0x00, 0x00, 0x02, 0xff, 0xff})
	require.NoError(t, err)

	_, err = ReadMessage(&buf)
	require.Error(t, err)
}

func TestWriteMessageRejectsOversizePayload(t *testing.T) {
	t.Parallel()

	msg := &RespPrivKeyHandover{
		Privkeys: make([][32]byte, 200),
	}

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg)
	require.Error(t, err)
}
