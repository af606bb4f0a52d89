package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestDefaultNetworks(t *testing.T) {
	n, err := LoadNetworks("")
	require.NoError(t, err)

	sepolia, err := n.Select("base-sepolia", "")
	require.NoError(t, err)
	require.Equal(t, uint64(84532), sepolia.ChainID)
	require.Equal(t, uint64(3330), sepolia.SubscriptionID)
	require.Equal(t, common.HexToAddress("0x5C210eF41CD1a72de73bF76eC39637bB0d3d7BEE"), sepolia.VRFCoordinator)
	require.Equal(t, common.HexToHash("0x9e1344a1247c8a1785d0a4681a27152bffdb43666ae5bf7d14d24a5efd44bf71"), sepolia.KeyHash)

	base, err := n.Select("base", "")
	require.NoError(t, err)
	require.Equal(t, uint64(8453), base.ChainID)
	require.Equal(t, common.HexToAddress("0xd5D517aBE5cF79B7e95eC98dB0f0277788aFF634"), base.VRFCoordinator)
}

func TestLocalNetworkDerivesCoordinator(t *testing.T) {
	n, err := LoadNetworks("")
	require.NoError(t, err)

	_, err = n.Select("local", "")
	require.Error(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	local, err := n.Select("local", "0x"+hexKey)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), local.VRFCoordinator)
}

func TestSelectRejectsBadEntries(t *testing.T) {
	n, err := ParseNetworks([]byte(`
networks:
  broken:
    keyHash: "0x1234"
    vrfCoordinator: "0x5C210eF41CD1a72de73bF76eC39637bB0d3d7BEE"
  badaddr:
    keyHash: "0x9e1344a1247c8a1785d0a4681a27152bffdb43666ae5bf7d14d24a5efd44bf71"
    vrfCoordinator: "nope"
`))
	require.NoError(t, err)

	_, err = n.Select("broken", "")
	require.ErrorContains(t, err, "invalid keyHash")
	_, err = n.Select("badaddr", "")
	require.ErrorContains(t, err, "invalid vrfCoordinator")
	_, err = n.Select("missing", "")
	require.ErrorContains(t, err, "unknown network")
}

func TestParseNetworksEmpty(t *testing.T) {
	_, err := ParseNetworks([]byte("networks: {}\n"))
	require.Error(t, err)
}
