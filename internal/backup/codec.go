// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/tomtom215/posvault/internal/crypt"
)

const compressionZstd = "zstd"

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayloadSize+(1<<20)))
)

// document is the on-disk JSON form of a snapshot. Exactly one of Payload
// and Envelope is set.
type document struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Envelope *crypt.Envelope `json:"envelope,omitempty"`
}

// encodePayload returns the compact payload bytes the checksum covers.
func encodePayload(p *Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// encodePlain builds a plain snapshot document.
func encodePlain(meta Metadata, payload []byte) ([]byte, error) {
	return json.Marshal(document{Metadata: meta, Payload: payload})
}

// encodeSealed compresses and seals payload, then builds the document.
func encodeSealed(engine *crypt.Engine, meta Metadata, payload []byte, password string) ([]byte, error) {
	env, err := engine.Seal(zstdEncoder.EncodeAll(payload, nil), []byte(password))
	if err != nil {
		return nil, err
	}
	env.Compression = compressionZstd
	return json.Marshal(document{Metadata: meta, Envelope: env})
}

// decodeDocument parses a snapshot file without unsealing it.
func decodeDocument(data []byte) (*document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if doc.Metadata.ID == "" {
		return nil, fmt.Errorf("parse snapshot: missing metadata")
	}
	return &doc, nil
}

// sealed reports whether the document carries an envelope.
func (d *document) sealed() bool {
	return d.Envelope != nil
}

// payloadBytes returns the compact payload bytes, unsealing when needed.
func (d *document) payloadBytes(engine *crypt.Engine, password string) ([]byte, error) {
	if !d.sealed() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, d.Payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		return buf.Bytes(), nil
	}

	plain, err := engine.Unseal(d.Envelope, []byte(password))
	if err != nil {
		return nil, err
	}
	switch d.Envelope.Compression {
	case "":
		return plain, nil
	case compressionZstd:
		out, err := zstdDecoder.DecodeAll(plain, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", d.Envelope.Compression)
	}
}

// decodePayload parses payload bytes.
func decodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return &p, nil
}

// Verify checks snapshot structure and, when a checksum was recorded, that
// payload hashes to it.
func Verify(meta Metadata, payload []byte) VerificationResult {
	res := VerificationResult{StructureValid: true, ChecksumMatch: true, Errors: []string{}}

	if meta.ID == "" {
		res.StructureValid = false
		res.Errors = append(res.Errors, "metadata is missing an id")
	}
	if meta.CreatedAt <= 0 {
		res.StructureValid = false
		res.Errors = append(res.Errors, "metadata is missing a timestamp")
	}
	if meta.FormatVersion == "" {
		res.StructureValid = false
		res.Errors = append(res.Errors, "metadata is missing a format version")
	}

	p, err := decodePayload(payload)
	switch {
	case err != nil:
		res.StructureValid = false
		res.Errors = append(res.Errors, err.Error())
	case p.IsEmpty():
		res.StructureValid = false
		res.Errors = append(res.Errors, "payload has no settings, auth data or POS data")
	}

	if meta.Checksum != "" && !crypt.VerifyChecksum(payload, meta.Checksum) {
		res.ChecksumMatch = false
		res.Errors = append(res.Errors, ErrChecksumMismatch.Error())
	}

	res.IsValid = res.StructureValid && res.ChecksumMatch
	return res
}
