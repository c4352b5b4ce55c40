// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/provenance"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/refresolve"
	"github.com/bureau-foundation/wsstore/lib/resolve"
)

// autoNamePrefix starts the names given to objects saved without a
// name or id.
const autoNamePrefix = "auto"

// autoNameAttempts bounds retries when a concurrent save takes an
// assigned auto name.
const autoNameAttempts = 5

// SaveObject is one document to save.
type SaveObject struct {
	// At most one of Name and ObjectID. Neither means the object is
	// given the next free auto name.
	Name     string
	ObjectID int64

	// Type is the schema type, e.g. "Genome.Assembly-1.2". A type
	// without a full version validates against the latest match.
	Type string

	// Data is the JSON document.
	Data []byte

	Metadata   map[string]string
	Provenance []provenance.Action

	// Hidden applies only when the save creates the object.
	Hidden bool
}

// SaveParams is a batch save into one workspace.
type SaveParams struct {
	Workspace ref.WorkspaceLocator
	Objects   []SaveObject
}

// SaveObjects validates, resolves, and stores every object in params
// and returns their information in input order. The batch commits
// atomically: any failure leaves the workspace unchanged. Requires
// write permission.
func (s *Service) SaveObjects(ctx context.Context, caller Caller, params SaveParams) ([]ObjectInformation, error) {
	start := time.Now()
	logger := s.logger.With("call_id", uuid.NewString())
	infos, err := s.saveObjects(ctx, caller, params, logger)
	if err != nil {
		s.metrics.rejected(err)
		logger.Info("save rejected",
			"user", caller.User.String(),
			"workspace", params.Workspace.String(),
			"objects", len(params.Objects),
			"error", err,
		)
		return nil, err
	}
	s.metrics.saveCalls.Inc()
	s.metrics.saveDuration.Observe(time.Since(start).Seconds())
	return infos, nil
}

func (s *Service) saveObjects(ctx context.Context, caller Caller, params SaveParams, logger *slog.Logger) ([]ObjectInformation, error) {
	if len(params.Objects) == 0 {
		return nil, fault.Inputf("No data provided")
	}
	workspace, _, err := s.workspace(ctx, caller, params.Workspace, writeAccess, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	batch := s.engine.NewBatch(caller.User)
	versions := make([]backend.NewVersion, len(params.Objects))
	var stored int64
	for i, object := range params.Objects {
		position := i + 1
		prepared, err := s.prepare(ctx, workspace, batch, position, object, caller.User, now)
		if err != nil {
			return nil, err
		}
		versions[i] = prepared.version
		stored += prepared.version.Size
		if prepared.spilled {
			s.metrics.spills.Inc()
		}
	}

	records, err := s.commit(ctx, workspace, params.Objects, versions, now)
	if err != nil {
		return nil, err
	}

	infos := make([]ObjectInformation, len(records))
	var references int
	for i, record := range records {
		infos[i] = objectInformation(record, workspace.Name())
		references += len(record.References)
	}
	s.metrics.versionsSaved.Add(float64(len(records)))
	s.metrics.referencesStored.Add(float64(references))
	s.metrics.bytesSaved.Add(float64(stored))
	logger.Info("objects saved",
		"user", caller.User.String(),
		"workspace", workspace.ID(),
		"objects", len(records),
		"identifiers", batch.Identifiers(),
		"bytes", stored,
	)
	return infos, nil
}

type preparedVersion struct {
	version backend.NewVersion
	spilled bool
}

// prepare runs the per-object pipeline: target validation, provenance
// resolution, type validation, reference rewriting, size checks, and
// storing the canonical document blob.
func (s *Service) prepare(ctx context.Context, workspace resolve.Workspace, batch *refresolve.Batch, position int, object SaveObject, user ref.User, now time.Time) (preparedVersion, error) {
	if err := s.checkTarget(ctx, workspace, position, object); err != nil {
		return preparedVersion{}, err
	}
	typeID, err := ref.ParseTypeID(object.Type)
	if err != nil {
		return preparedVersion{}, fault.Wrap(fault.Input, err, "Object #%d has an invalid type", position)
	}
	for key := range object.Metadata {
		if key == "" {
			return preparedVersion{}, fault.Inputf("Object #%d: metadata keys may not be empty", position)
		}
	}

	history := provenance.Provenance{User: user, Date: now, Actions: object.Provenance}
	if err := history.Validate(position); err != nil {
		return preparedVersion{}, err
	}
	addresses, err := batch.ResolveProvenance(ctx, position, history.References())
	if err != nil {
		return preparedVersion{}, err
	}
	history, err = history.Bind(addresses)
	if err != nil {
		return preparedVersion{}, fmt.Errorf("object #%d: %w", position, err)
	}
	provenanceSize, err := history.Size()
	if err != nil {
		return preparedVersion{}, err
	}
	if err := s.limits.CheckProvenance(position, provenanceSize); err != nil {
		return preparedVersion{}, err
	}

	validation, err := s.validator.Validate(ctx, typeID, object.Data)
	if err != nil {
		return preparedVersion{}, fault.Wrap(fault.KindOf(err), err, "Object #%d", position)
	}
	resolved, err := batch.Resolve(ctx, position, validation)
	if err != nil {
		return preparedVersion{}, err
	}

	extract, err := validation.Extract(resolved.Document)
	if err != nil {
		return preparedVersion{}, fmt.Errorf("object #%d: extracting searchable subset: %w", position, err)
	}
	if err := s.limits.CheckExtract(position, int64(len(extract))); err != nil {
		return preparedVersion{}, err
	}
	derived, err := validation.Metadata(resolved.Document)
	if err != nil {
		return preparedVersion{}, fmt.Errorf("object #%d: extracting metadata: %w", position, err)
	}
	metadata := mergeMetadata(object.Metadata, derived)
	if err := s.limits.CheckMetadata(position, governor.MetadataSize(metadata)); err != nil {
		return preparedVersion{}, err
	}

	checksum, size, spilled, err := s.storeDocument(ctx, position, resolved.Document)
	if err != nil {
		return preparedVersion{}, err
	}
	return preparedVersion{
		version: backend.NewVersion{
			ObjectID:   object.ObjectID,
			Name:       object.Name,
			Hidden:     object.Hidden,
			Type:       validation.Type,
			Checksum:   checksum,
			Size:       size,
			Metadata:   metadata,
			Provenance: history,
			References: resolved.References,
			Extract:    extract,
			SavedBy:    user,
			Saved:      now,
		},
		spilled: spilled,
	}, nil
}

// checkTarget validates the object's name or id. An id must name an
// existing object; a deleted one is undeleted by the save.
func (s *Service) checkTarget(ctx context.Context, workspace resolve.Workspace, position int, object SaveObject) error {
	switch {
	case object.Name != "" && object.ObjectID != 0:
		return fault.Inputf("Object #%d: must provide one and only one of object name or id", position)
	case object.Name != "":
		if err := ref.ValidateObjectName(object.Name); err != nil {
			return fault.Wrap(fault.Input, err, "Object #%d", position)
		}
	case object.ObjectID < 0:
		return fault.Inputf("Object #%d: object id must be positive, got %d", position, object.ObjectID)
	case object.ObjectID > 0:
		locator, err := ref.ObjectByID(object.ObjectID)
		if err != nil {
			return fault.Wrap(fault.Input, err, "Object #%d", position)
		}
		if _, _, err := s.resolver.Object(ctx, workspace, locator, resolve.Options{AllowDeleted: true}); err != nil {
			return fault.Wrap(fault.KindOf(err), err, "Object #%d", position)
		}
	}
	return nil
}

// mergeMetadata overlays derived on supplied. Derived values win.
func mergeMetadata(supplied, derived map[string]string) map[string]string {
	if len(supplied) == 0 && len(derived) == 0 {
		return nil
	}
	merged := make(map[string]string, len(supplied)+len(derived))
	for key, value := range supplied {
		merged[key] = value
	}
	for key, value := range derived {
		merged[key] = value
	}
	return merged
}

// storeDocument canonicalizes doc through a size-limited buffer,
// hashing as it goes, and stores the bytes as a blob. The buffer's
// spill file never outlives the call.
func (s *Service) storeDocument(ctx context.Context, position int, doc any) (blobstore.Checksum, int64, bool, error) {
	buffer := s.limits.NewBuffer(s.limits.ObjectBytes)
	defer buffer.Close()

	hasher := blobstore.NewHasher()
	if err := governor.Canonicalize(doc, io.MultiWriter(buffer, hasher)); err != nil {
		return blobstore.Checksum{}, 0, false, fmt.Errorf("object #%d: canonicalizing document: %w", position, err)
	}
	size := buffer.Size()
	if err := s.limits.CheckObject(position, size); err != nil {
		return blobstore.Checksum{}, 0, false, err
	}
	reader, err := buffer.Reader()
	if err != nil {
		return blobstore.Checksum{}, 0, false, fmt.Errorf("object #%d: %w", position, err)
	}
	checksum := hasher.Sum()
	if err := s.backend.PutBlob(ctx, checksum, reader); err != nil {
		return blobstore.Checksum{}, 0, false, fmt.Errorf("object #%d: storing document: %w", position, err)
	}
	return checksum, size, buffer.Spilled(), nil
}

// commit assigns auto names and writes the versions. An auto name
// taken between assignment and commit is retried with fresh names.
func (s *Service) commit(ctx context.Context, workspace resolve.Workspace, objects []SaveObject, versions []backend.NewVersion, now time.Time) ([]backend.VersionRecord, error) {
	var unnamed []int
	for i, object := range objects {
		if object.Name == "" && object.ObjectID == 0 {
			unnamed = append(unnamed, i)
		}
	}
	for attempt := 1; ; attempt++ {
		if len(unnamed) > 0 {
			names, err := s.autoNames(ctx, workspace, objects, len(unnamed))
			if err != nil {
				return nil, err
			}
			for j, i := range unnamed {
				versions[i].Name = names[j]
				versions[i].CreateOnly = true
			}
		}
		records, err := s.backend.SaveVersions(ctx, workspace.ID(), versions, now)
		if err == nil {
			return records, nil
		}
		if errors.Is(err, backend.ErrNameInUse) && len(unnamed) > 0 && attempt < autoNameAttempts {
			s.logger.Debug("auto name collision, retrying", "workspace", workspace.ID(), "attempt", attempt)
			continue
		}
		if errors.Is(err, backend.ErrNotFound) {
			return nil, fault.NotFoundf("An object saved by id no longer exists in workspace %s", workspace.Label())
		}
		return nil, internal(err, "saving to workspace %s", workspace.Label())
	}
}

// autoNames returns count names of the form auto<N>, choosing the
// lowest N not used by an object in the workspace or named in the
// batch.
func (s *Service) autoNames(ctx context.Context, workspace resolve.Workspace, objects []SaveObject, count int) ([]string, error) {
	existing, err := s.backend.ObjectNamesWithPrefix(ctx, workspace.ID(), autoNamePrefix)
	if err != nil {
		return nil, internal(err, "listing object names in workspace %s", workspace.Label())
	}
	used := map[int64]bool{}
	mark := func(name string) {
		if n, ok := autoNameNumber(name); ok {
			used[n] = true
		}
	}
	for _, name := range existing {
		mark(name)
	}
	for _, object := range objects {
		mark(object.Name)
	}
	names := make([]string, 0, count)
	for n := int64(1); len(names) < count; n++ {
		if !used[n] {
			names = append(names, autoNamePrefix+strconv.FormatInt(n, 10))
		}
	}
	return names, nil
}

// autoNameNumber returns N for a name auto<N> with N a positive
// decimal without leading zeros.
func autoNameNumber(name string) (int64, bool) {
	digits, ok := strings.CutPrefix(name, autoNamePrefix)
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// lookupReference resolves a reference for the reference engine. The
// caller must be able to read the target workspace; failures map to
// not-found, deleted, or inaccessible.
func (s *Service) lookupReference(ctx context.Context, user ref.User, identifier ref.ObjectIdentifier) (refresolve.Target, error) {
	workspace, record, err := s.resolver.Workspace(ctx, identifier.Workspace, resolve.Options{})
	if err != nil {
		return refresolve.Target{}, err
	}
	if err := s.authorize(As(user), record, readAccess); err != nil {
		return refresolve.Target{}, inaccessible(err)
	}
	object, _, err := s.resolver.Object(ctx, workspace, identifier.Object, resolve.Options{})
	if err != nil {
		return refresolve.Target{}, err
	}
	version, _ := identifier.Object.Version()
	found, err := s.backend.Version(ctx, workspace.ID(), object.ID(), version)
	if errors.Is(err, backend.ErrNotFound) {
		return refresolve.Target{}, fault.NotFoundf("No version %d of %s exists", version, object.Label())
	}
	if err != nil {
		return refresolve.Target{}, internal(err, "loading %s", identifier)
	}
	return refresolve.Target{Address: found.Address, Type: found.Type}, nil
}
