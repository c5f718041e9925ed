package credential

import "time"

// Record is the at-rest form of a wallet key. The password never appears here.
type Record struct {
	Address             string    `json:"address"`
	EncryptedPrivateKey string    `json:"encryptedPrivateKey"`
	CreatedAt           time.Time `json:"createdAt"`
}
