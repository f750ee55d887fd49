package swapscript

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func randKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func randHash(t *testing.T) [HashSize]byte {
	t.Helper()
	var h [HashSize]byte
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

// TestContractScriptRoundTrip builds a contract redeem script and checks
// that parsing it back out recovers the original parameters, the
// round-trip/idempotence property.
func TestContractScriptRoundTrip(t *testing.T) {
	hashlockPriv := randKey(t)
	timelockPriv := randKey(t)
	preimage := randHash(t)

	params := ContractParams{
		HashlockPubkey: hashlockPriv.PubKey(),
		TimelockPubkey: timelockPriv.PubKey(),
		Hash160:        Hash160FromPreimage(preimage),
		Timelock:       144,
	}

	script, err := ContractRedeemScript(params)
	require.NoError(t, err)

	parsed, err := ParseContractScript(script)
	require.NoError(t, err)

	require.True(t, parsed.HashlockPubkey.IsEqual(params.HashlockPubkey))
	require.True(t, parsed.TimelockPubkey.IsEqual(params.TimelockPubkey))
	require.Equal(t, params.Hash160, parsed.Hash160)
	require.Equal(t, params.Timelock, parsed.Timelock)
}

// TestContractScriptRejectsMalformed ensures a script that doesn't
// decompose into exactly the two canonical branches is rejected.
func TestContractScriptRejectsMalformed(t *testing.T) {
	_, err := ParseContractScript([]byte{0x51}) // OP_1, garbage
	require.Error(t, err)
}

// TestHashlockPubkeyTweak verifies that DeriveHashlockPubkey and
// TweakPrivateKey are inverse: the private key of the tweaked pubkey is
// exactly receiverPriv + tweak.
func TestHashlockPubkeyTweak(t *testing.T) {
	receiverPriv := randKey(t)

	var tweak [32]byte
	_, err := rand.Read(tweak[:])
	require.NoError(t, err)

	hashlockPub := DeriveHashlockPubkey(receiverPriv.PubKey(), tweak)
	tweakedPriv := TweakPrivateKey(receiverPriv, tweak)

	require.True(t, tweakedPriv.PubKey().IsEqual(hashlockPub))
}

// TestHash160DistinctPreimages checks that two different 32-byte
// preimages, one a short string zero-padded to HashSize and one all
// zeros, commit to different HX160 values.
func TestHash160DistinctPreimages(t *testing.T) {
	var short [HashSize]byte
	copy(short[:], []byte("too-short"))

	full := Hash160FromPreimage(short)
	bad := Hash160FromPreimage([HashSize]byte{})

	require.NotEqual(t, full, bad)
}

func TestFundingMultiSigScriptDeterministic(t *testing.T) {
	privA := randKey(t)
	privB := randKey(t)

	s1, err := FundingMultiSigScript(privA.PubKey(), privB.PubKey())
	require.NoError(t, err)
	s2, err := FundingMultiSigScript(privB.PubKey(), privA.PubKey())
	require.NoError(t, err)

	require.True(t, bytes.Equal(s1, s2), "funding script must not depend on argument order")
}

func TestFundingOutputRejectsNonPositiveAmount(t *testing.T) {
	privA := randKey(t)
	privB := randKey(t)

	_, _, err := FundingOutput(privA.PubKey(), privB.PubKey(), btcutil.Amount(0))
	require.Error(t, err)
}
