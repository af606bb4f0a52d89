package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var defaultNetworks []byte

// Network reúne os parâmetros passados ao contrato no deploy
type Network struct {
	Name           string
	ChainID        uint64
	RPCURL         string
	KeyHash        common.Hash
	VRFCoordinator common.Address
	SubscriptionID uint64
}

type networkEntry struct {
	ChainID        uint64 `yaml:"chainId"`
	RPCURL         string `yaml:"rpcUrl"`
	KeyHash        string `yaml:"keyHash"`
	VRFCoordinator string `yaml:"vrfCoordinator"`
	SubscriptionID uint64 `yaml:"subscriptionId"`
}

// Networks é o conteúdo do arquivo de redes, indexado pelo nome
type Networks struct {
	Networks map[string]networkEntry `yaml:"networks"`
}

// LoadNetworks lê o arquivo YAML de redes; path vazio usa o arquivo embutido
func LoadNetworks(path string) (*Networks, error) {
	raw := defaultNetworks
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read networks file %s", path)
		}
		raw = b
	}
	return ParseNetworks(raw)
}

// ParseNetworks decodifica o YAML de redes
func ParseNetworks(raw []byte) (*Networks, error) {
	var n Networks
	if err := yaml.Unmarshal(raw, &n); err != nil {
		return nil, errors.Wrap(err, "parse networks yaml")
	}
	if len(n.Networks) == 0 {
		return nil, errors.New("networks file has no entries")
	}
	return &n, nil
}

// Select resolve uma rede pelo nome. Se o coordinator estiver vazio (rede local),
// o endereço é derivado da chave privada do simulador.
func (n *Networks) Select(name, coordinatorKey string) (Network, error) {
	e, ok := n.Networks[name]
	if !ok {
		return Network{}, errors.Errorf("unknown network %q", name)
	}
	if !isHash(e.KeyHash) {
		return Network{}, errors.Errorf("network %s: invalid keyHash %q", name, e.KeyHash)
	}

	out := Network{
		Name:           name,
		ChainID:        e.ChainID,
		RPCURL:         e.RPCURL,
		KeyHash:        common.HexToHash(e.KeyHash),
		SubscriptionID: e.SubscriptionID,
	}

	switch {
	case e.VRFCoordinator != "":
		if !common.IsHexAddress(e.VRFCoordinator) {
			return Network{}, errors.Errorf("network %s: invalid vrfCoordinator %q", name, e.VRFCoordinator)
		}
		out.VRFCoordinator = common.HexToAddress(e.VRFCoordinator)
	case coordinatorKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(coordinatorKey, "0x"))
		if err != nil {
			return Network{}, errors.Wrap(err, "parse VRF_COORDINATOR_KEY")
		}
		out.VRFCoordinator = crypto.PubkeyToAddress(key.PublicKey)
	default:
		return Network{}, errors.Errorf("network %s: vrfCoordinator not set and no coordinator key given", name)
	}

	return out, nil
}

func isHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
