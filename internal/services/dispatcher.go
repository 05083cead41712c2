package services

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"oneoftools/pkg/helius"
)

// DispatchFailure is one transaction that could not be enqueued
type DispatchFailure struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// DispatchReport summarises a webhook batch
type DispatchReport struct {
	Enqueued   int               `json:"enqueued"`
	Duplicates int               `json:"duplicates"`
	Skipped    int               `json:"skipped"`
	Failed     []DispatchFailure `json:"failed"`
}

// Dispatcher authenticates webhook batches and fans them out as one task per transaction
type Dispatcher struct {
	queue  TaskQueue
	secret string
}

func NewDispatcher(queue TaskQueue, secret string) *Dispatcher {
	return &Dispatcher{queue: queue, secret: secret}
}

// Authorize compares the presented secret in constant time
func (d *Dispatcher) Authorize(authorization string) error {
	return checkSecret(d.secret, authorization)
}

func checkSecret(expected, presented string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// TaskName derives the dedup name of a transaction's task
func TaskName(mint, signature string) string {
	head := signature
	if len(head) > 10 {
		head = head[:10]
	}
	tail := signature
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	return fmt.Sprintf("%s-%s%s", mint, head, tail)
}

// Dispatch enqueues one nft-event task per transaction that references an NFT. Every transaction
// is attempted; individual failures are collected in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, authorization string, txs []helius.EnhancedTransaction) (*DispatchReport, error) {
	if err := d.Authorize(authorization); err != nil {
		logrus.Warn("Rejected webhook with invalid authorization")
		return nil, err
	}

	report := &DispatchReport{Failed: []DispatchFailure{}}
	for i := range txs {
		tx := &txs[i]
		nft, ok := tx.FirstNFT()
		if !ok {
			report.Skipped++
			continue
		}

		body, err := json.Marshal(tx)
		if err != nil {
			report.Failed = append(report.Failed, DispatchFailure{Signature: tx.Signature, Error: err.Error()})
			continue
		}

		task := &Task{
			Name:          TaskName(nft.Mint, tx.Signature),
			Kind:          TaskKindNFTEvent,
			Payload:       base64.StdEncoding.EncodeToString(body),
			Authorization: d.secret,
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			if IsDuplicateTask(err) {
				report.Duplicates++
				continue
			}
			logrus.WithFields(logrus.Fields{"signature": tx.Signature, "task": task.Name}).Errorf("Failed to enqueue task: %v", err)
			report.Failed = append(report.Failed, DispatchFailure{Signature: tx.Signature, Error: err.Error()})
			continue
		}
		report.Enqueued++
	}

	logrus.WithFields(logrus.Fields{
		"received":   len(txs),
		"enqueued":   report.Enqueued,
		"duplicates": report.Duplicates,
		"skipped":    report.Skipped,
		"failed":     len(report.Failed),
	}).Info("Dispatched webhook batch")
	return report, nil
}
