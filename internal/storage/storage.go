package storage

import "transferScope/internal/model"

// BronzeWriter is the raw-layer sink: append-only, one file per fetch batch.
type BronzeWriter interface {
	WriteBatch(token, prefix string, records []model.RawTransactionRecord) error
}

// BronzeReader scans every raw file under a token's partition prefix.
type BronzeReader interface {
	Scan(token string, fn func(model.RawTransactionRecord) error) error
}

// SilverWriter replaces a (token, month) partition wholesale, so re-running
// the transform for a month never double counts.
type SilverWriter interface {
	WritePartition(token, month string, records []model.DecodedTransaction) error
}
