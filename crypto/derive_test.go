package crypto

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindProgramAddressIsDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("platform"), []byte("NF-Tickets")}

	addr1, bump1, err := FindProgramAddress(seeds...)
	require.NoError(t, err)
	addr2, bump2, err := FindProgramAddress(seeds...)
	require.NoError(t, err)

	require.Equal(t, addr1, addr2)
	require.Equal(t, bump1, bump2)

	recreated, err := CreateProgramAddress(seeds, bump1)
	require.NoError(t, err)
	require.Equal(t, addr1, recreated)
}

func TestFindProgramAddressSeparatesSeeds(t *testing.T) {
	a, _, err := FindProgramAddress([]byte("platform"), []byte("alpha"))
	require.NoError(t, err)
	b, _, err := FindProgramAddress([]byte("platform"), []byte("beta"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCreateProgramAddressRejectsOnCurveBumps(t *testing.T) {
	seeds := [][]byte{[]byte("listing"), bytes.Repeat([]byte{0x42}, 20)}
	_, found, err := FindProgramAddress(seeds...)
	require.NoError(t, err)

	// Every bump above the canonical one must have been rejected as on-curve.
	for bump := 255; bump > int(found); bump-- {
		_, err := CreateProgramAddress(seeds, uint8(bump))
		require.ErrorIs(t, err, ErrOnCurve)
	}
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, 255)
	require.Error(t, err)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, 255)
	require.Error(t, err)
}

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.Address()

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, decoded)

	_, err = DecodeAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	require.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	payload := []byte("market_list:payload")

	sig, err := key.Sign(payload)
	require.NoError(t, err)

	recovered, err := RecoverAddress(payload, sig)
	require.NoError(t, err)
	require.Equal(t, key.Address(), recovered)

	other, err := RecoverAddress([]byte("tampered"), sig)
	require.NoError(t, err)
	require.NotEqual(t, key.Address(), other)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "seller.keystore")

	require.NoError(t, SaveToKeystore(path, key, "secret"))
	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Address(), loaded.Address())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
