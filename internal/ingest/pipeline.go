// Package ingest implements the catalog ingestion pipeline: deduplicated,
// batched, referentially consistent writes of identifiers and resource
// details, with per-item outcome attribution.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cpcatalog/cpcatalog/internal/bloom"
	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
	"github.com/cpcatalog/cpcatalog/pkg/cpid"
)

// DefaultBatchSize bounds the number of records per physical write to limit
// transaction size and lock duration.
const DefaultBatchSize = 100

// ItemStatus is the per-item outcome of a registration call.
type ItemStatus string

const (
	// StatusCreated means the record was written by this call.
	StatusCreated ItemStatus = "created"
	// StatusExists means the identifier was already registered; an
	// idempotent no-op, not an error.
	StatusExists ItemStatus = "exists"
	// StatusFailed means this item was rejected; Err carries the reason.
	StatusFailed ItemStatus = "failed"
)

// ItemResult attributes an outcome to one caller-supplied item.
type ItemResult struct {
	Identifier string
	Status     ItemStatus
	Err        error
}

// Result is the caller-visible outcome of a registration call. Every item
// in the (deduplicated) input appears exactly once; nothing is silently
// dropped.
type Result struct {
	Items    []ItemResult
	Created  int
	Existing int
	Failed   int
}

// OK reports whether every item succeeded.
func (r *Result) OK() bool {
	return r.Failed == 0
}

// DetailInput is one caller-supplied resource detail record, naming its
// owning identifier by string.
type DetailInput struct {
	Identifier          string
	PowerConsumption    int
	CPUPerformance      int
	CPUAvailable        int
	GPUModel            string
	GPUPerformance      int
	GPUMemory           int
	GPUAvailable        string
	NetworkDelay        int
	NetworkPerformance  int
	NetworkIsIXP        bool
	NetworkIPs          string
	NetworkAvailable    string
	NetworkIPsAvailable string
	NetworkPorts        string
	Price               int
}

// Pipeline orchestrates validated writes into the catalog store.
type Pipeline struct {
	store     catalog.Store
	filter    *bloom.Filter
	batchSize int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize overrides the default batch ceiling.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a Pipeline. The bloom filter is optional; when present it
// short-circuits the store existence probe for identifiers that are
// definitely unseen. It is advisory only: the store's uniqueness constraint
// is the authoritative duplicate guard, so a cold filter never produces a
// wrong outcome, only an extra insert attempt.
func New(store catalog.Store, filter *bloom.Filter, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		filter:    filter,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// stagedIdentifier pairs a decoded record with its slot in the result list
// so batch outcomes stay attributable after chunking.
type stagedIdentifier struct {
	record    *catalog.IdentifierRecord
	itemIndex int
}

// RegisterIdentifiers registers a set of candidate identifier strings.
// Caller-supplied duplicates are collapsed before processing. A malformed
// identifier fails only itself; already-registered identifiers are reported
// as StatusExists. A store failure aborts the in-flight call and is safe to
// retry since registration is idempotent.
func (p *Pipeline) RegisterIdentifiers(ctx context.Context, rawIDs []string) (*Result, error) {
	if len(rawIDs) == 0 {
		return nil, cperrors.NewValidationError(cperrors.CodeEmptyBatch, "no identifiers supplied")
	}

	// Deduplicate the input preserving first-occurrence order.
	seen := make(map[string]struct{}, len(rawIDs))
	candidates := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		candidates = append(candidates, raw)
	}

	result := &Result{Items: make([]ItemResult, len(candidates))}
	var staged []stagedIdentifier

	now := time.Now()
	for i, raw := range candidates {
		result.Items[i] = ItemResult{Identifier: raw}

		// Existence fast path: the bloom filter answers "definitely
		// unseen" without touching the store; otherwise probe it.
		if p.maybeRegistered(ctx, raw) {
			exists, err := p.store.IdentifierExists(ctx, raw)
			if err != nil {
				return nil, cperrors.NewStoreUnavailable("failed to check identifier existence", err)
			}
			if exists {
				result.Items[i].Status = StatusExists
				result.Existing++
				continue
			}
		}

		attrs, err := cpid.Decode(raw)
		if err != nil {
			result.Items[i].Status = StatusFailed
			result.Items[i].Err = cperrors.NewDecodeError(fmt.Sprintf("identifier %q", raw), err)
			result.Failed++
			continue
		}

		staged = append(staged, stagedIdentifier{
			record: &catalog.IdentifierRecord{
				Identifier:       raw,
				City:             string(attrs.City),
				Industry:         string(attrs.Industry),
				Organization:     attrs.Organization,
				ResourceType:     string(attrs.ResourceType),
				Region:           string(attrs.Region),
				AvailabilityZone: string(attrs.AvailabilityZone),
				ServiceType:      string(attrs.ServiceType),
				ComputeTotal:     attrs.ComputeTotal,
				StorageTotal:     attrs.StorageTotal,
				NetworkTotal:     attrs.NetworkTotal,
				CreatedAt:        now,
			},
			itemIndex: i,
		})
	}

	// Write staged records in input order, one transaction per chunk.
	for start := 0; start < len(staged); start += p.batchSize {
		end := start + p.batchSize
		if end > len(staged) {
			end = len(staged)
		}
		chunk := staged[start:end]

		records := make([]*catalog.IdentifierRecord, len(chunk))
		for j, s := range chunk {
			records[j] = s.record
		}

		created, err := p.store.InsertIdentifiers(ctx, records)
		if err != nil {
			return nil, cperrors.NewStoreUnavailable("failed to write identifier batch", err)
		}

		for j, s := range chunk {
			if created[j] {
				result.Items[s.itemIndex].Status = StatusCreated
				result.Created++
				if p.filter != nil {
					p.filter.Add(s.record.Identifier)
				}
			} else {
				// Race loser: another caller registered the same
				// string between our probe and the insert.
				result.Items[s.itemIndex].Status = StatusExists
				result.Existing++
			}
		}
	}

	if result.Failed > 0 {
		log.Printf("ingest: registered %d identifiers (%d existing), %d rejected",
			result.Created, result.Existing, result.Failed)
	}
	return result, nil
}

// stagedDetail pairs a resolved record with its slot in the result list.
type stagedDetail struct {
	record    *catalog.DetailRecord
	itemIndex int
}

// RegisterDetails registers an ordered sequence of resource detail records.
// A record naming an unregistered identifier fails only itself; resolved
// records are written in input order in chunks. Detail writes are not
// idempotent: after a store failure a retry may need caller-side
// deduplication if a chunk prefix committed.
func (p *Pipeline) RegisterDetails(ctx context.Context, inputs []DetailInput) (*Result, error) {
	if len(inputs) == 0 {
		return nil, cperrors.NewValidationError(cperrors.CodeEmptyBatch, "no detail records supplied")
	}

	result := &Result{Items: make([]ItemResult, len(inputs))}
	var staged []stagedDetail

	now := time.Now()
	for i, in := range inputs {
		result.Items[i] = ItemResult{Identifier: in.Identifier}

		identifierID, err := p.store.ResolveIdentifier(ctx, in.Identifier)
		if errors.Is(err, catalog.ErrIdentifierNotFound) {
			result.Items[i].Status = StatusFailed
			result.Items[i].Err = cperrors.NewUnresolvedReference(in.Identifier)
			result.Failed++
			continue
		}
		if err != nil {
			return nil, cperrors.NewStoreUnavailable("failed to resolve identifier", err)
		}

		staged = append(staged, stagedDetail{
			record: &catalog.DetailRecord{
				IdentifierID:        identifierID,
				PowerConsumption:    in.PowerConsumption,
				CPUPerformance:      in.CPUPerformance,
				CPUAvailable:        in.CPUAvailable,
				GPUModel:            in.GPUModel,
				GPUPerformance:      in.GPUPerformance,
				GPUMemory:           in.GPUMemory,
				GPUAvailable:        in.GPUAvailable,
				NetworkDelay:        in.NetworkDelay,
				NetworkPerformance:  in.NetworkPerformance,
				NetworkIsIXP:        in.NetworkIsIXP,
				NetworkIPs:          in.NetworkIPs,
				NetworkAvailable:    in.NetworkAvailable,
				NetworkIPsAvailable: in.NetworkIPsAvailable,
				NetworkPorts:        in.NetworkPorts,
				Price:               in.Price,
				CreatedAt:           now,
			},
			itemIndex: i,
		})
	}

	for start := 0; start < len(staged); start += p.batchSize {
		end := start + p.batchSize
		if end > len(staged) {
			end = len(staged)
		}
		chunk := staged[start:end]

		records := make([]*catalog.DetailRecord, len(chunk))
		for j, s := range chunk {
			records[j] = s.record
		}

		if err := p.store.InsertDetails(ctx, records); err != nil {
			return nil, cperrors.NewStoreUnavailable("failed to write detail batch", err)
		}

		for _, s := range chunk {
			result.Items[s.itemIndex].Status = StatusCreated
			result.Created++
		}
	}

	if result.Failed > 0 {
		log.Printf("ingest: registered %d details, %d rejected", result.Created, result.Failed)
	}
	return result, nil
}

// maybeRegistered reports whether the identifier could already be in the
// store. Without a filter every candidate is probed.
func (p *Pipeline) maybeRegistered(ctx context.Context, identifier string) bool {
	if p.filter == nil {
		return true
	}
	return p.filter.MaybeContains(identifier)
}
