package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"casino-backend/internal/confidential"
)

type keyFile struct {
	Private string                 `json:"private"`
	Public  confidential.PublicKey `json:"public"`
}

func writeKey(path string, force bool) (confidential.KeyPair, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return confidential.KeyPair{}, fmt.Errorf("%s already exists", path)
		}
	}
	kp, err := confidential.GenerateKeyPair(rand.Reader)
	if err != nil {
		return kp, err
	}
	data, err := json.MarshalIndent(keyFile{Private: hex.EncodeToString(kp.Private[:]), Public: kp.Public}, "", "  ")
	if err != nil {
		return kp, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return kp, fmt.Errorf("failed to write key file: %w", err)
	}
	return kp, nil
}

func readKey(path string) (confidential.KeyPair, error) {
	var kp confidential.KeyPair
	data, err := os.ReadFile(path)
	if err != nil {
		return kp, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return kp, fmt.Errorf("malformed key file %s: %w", path, err)
	}
	priv, err := hex.DecodeString(kf.Private)
	if err != nil || len(priv) != len(kp.Private) {
		return kp, fmt.Errorf("malformed private key in %s", path)
	}
	copy(kp.Private[:], priv)
	derived, err := confidential.GenerateKeyPair(bytes.NewReader(kp.Private[:]))
	if err != nil {
		return kp, err
	}
	if derived.Public != kf.Public {
		return kp, fmt.Errorf("public key in %s does not match its private key", path)
	}
	kp.Public = kf.Public
	return kp, nil
}
