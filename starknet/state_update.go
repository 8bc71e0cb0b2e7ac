// Package starknet holds the minimal view of gateway payloads the mirror
// needs: just enough of a state update to find the class hashes it
// references. Everything else in a payload stays opaque.
package starknet

import "encoding/json"

type StateUpdate struct {
	StateDiff StateDiff `json:"state_diff"`
}

type StateDiff struct {
	DeployedContracts []struct {
		ClassHash string `json:"class_hash"`
	} `json:"deployed_contracts"`
	DeclaredClasses []struct {
		ClassHash string `json:"class_hash"`
	} `json:"declared_classes"`
}

// ExtractClassHashes parses a raw state-update payload and returns the class
// hashes it references: deployed contracts first, then declared classes, in
// payload order. Duplicates are preserved; deduplication happens later at
// the store existence check.
func ExtractClassHashes(payload []byte) ([]string, error) {
	var update StateUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return nil, err
	}

	diff := &update.StateDiff
	hashes := make([]string, 0, len(diff.DeployedContracts)+len(diff.DeclaredClasses))
	for _, contract := range diff.DeployedContracts {
		hashes = append(hashes, contract.ClassHash)
	}
	for _, class := range diff.DeclaredClasses {
		hashes = append(hashes, class.ClassHash)
	}
	return hashes, nil
}
