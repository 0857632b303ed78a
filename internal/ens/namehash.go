package ens

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/net/idna"
)

// Normalize lower-cases and maps a name with UTS-46 lookup rules.
func Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	out, err := idna.Lookup.ToUnicode(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidName, name, err)
	}
	return out, nil
}

// NameHash computes the EIP-137 node of a normalized name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label)
	}
	return node
}

// ReverseNode is the node of <addr>.addr.reverse.
func ReverseNode(addr common.Address) common.Hash {
	hexAddr := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
	return NameHash(hexAddr + ".addr.reverse")
}
