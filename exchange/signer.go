package exchange

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs venue orders with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewSigner parses a hex private key, with or without the 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

// Address is the checksummed account address derived from the key.
func (s *Signer) Address() string {
	return s.address
}

type signedOrder struct {
	ID       VenueOrderID `json:"id"`
	Symbol   string       `json:"symbol"`
	Side     string       `json:"side"`
	Quantity int          `json:"quantity"`
	Price    float64      `json:"price"`
	Time     int64        `json:"time"`
}

// SignOrder returns the hex signature over the Keccak256 hash of the order's JSON form.
func (s *Signer) SignOrder(order VenueOrder) (string, error) {
	payload, err := orderPayload(order)
	if err != nil {
		return "", err
	}

	hash := crypto.Keccak256Hash(payload)
	signature, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(signature), nil
}

// VerifyOrder reports whether signature was produced by this signer for order.
func (s *Signer) VerifyOrder(order VenueOrder, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	payload, err := orderPayload(order)
	if err != nil {
		return false
	}

	pub, err := crypto.SigToPub(crypto.Keccak256Hash(payload).Bytes(), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub).Hex() == s.address
}

func orderPayload(order VenueOrder) ([]byte, error) {
	return json.Marshal(signedOrder{
		ID:       order.ID,
		Symbol:   order.Symbol,
		Side:     sideName(order.Side),
		Quantity: order.Quantity,
		Price:    order.Price,
		Time:     order.Timestamp.UnixMilli(),
	})
}
