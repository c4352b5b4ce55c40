// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/backend/sqlitebackend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/clock"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/provenance"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/resolve"
	"github.com/bureau-foundation/wsstore/lib/testutil"
	"github.com/bureau-foundation/wsstore/lib/typesys"
	"github.com/bureau-foundation/wsstore/lib/workspace"
)

var (
	alice = ref.MustParseUser("alice")
	bob   = ref.MustParseUser("bob")
	carol = ref.MustParseUser("carol")
	root  = ref.MustParseUser("root")

	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

var definitions = []typesys.Definition{
	{
		Module:  "Reads",
		Name:    "Paired",
		Version: "1.0",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["platform"],
			"properties": {
				"platform": {"type": "string"},
				"count": {"type": "integer"}
			}
		}`),
		Metadata: map[string]string{"platform": "/platform", "count": "/count"},
	},
	{
		Module:  "Reads",
		Name:    "Paired",
		Version: "2.0",
		Schema:  json.RawMessage(`{"type": "object", "required": ["platform"]}`),
	},
	{
		Module:  "Genome",
		Name:    "Assembly",
		Version: "1.0",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"reads": {"type": "string", "x-reference": {"types": ["Reads.Paired-1"]}},
				"accession": {"type": "string", "x-reference": {"kind": "external"}},
				"aliases": {
					"type": "object",
					"x-reference-keys": {"types": ["Genome.Assembly"]},
					"additionalProperties": {"type": "string"}
				}
			}
		}`),
		Searchable: []string{"/name"},
		Metadata:   map[string]string{"name": "/name"},
	},
}

type fixture struct {
	service *workspace.Service
	clock   *clock.FakeClock
}

func newFixture(t *testing.T, configure func(*workspace.Config)) *fixture {
	t.Helper()
	ctx := context.Background()
	paths := testutil.TempStore(t)
	blobs, err := blobstore.Open(blobstore.Config{Root: paths.Blobs})
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	store, err := sqlitebackend.Open(ctx, sqlitebackend.Config{Path: paths.Database, Blobs: blobs})
	if err != nil {
		t.Fatalf("sqlitebackend.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := typesys.NewRegistry(nil)
	for _, definition := range definitions {
		if _, err := registry.Register(definition); err != nil {
			t.Fatalf("Register(%s.%s-%s): %v", definition.Module, definition.Name, definition.Version, err)
		}
	}

	limits := governor.DefaultLimits()
	limits.TempDir = paths.Temp
	fake := clock.Fake(baseTime)
	fake.SetStep(time.Second)
	cfg := workspace.Config{
		Backend:   store,
		Validator: registry,
		Limits:    limits,
		Admins:    permission.NewAdmins(root),
		Clock:     fake,
	}
	if configure != nil {
		configure(&cfg)
	}
	service, err := workspace.New(cfg)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return &fixture{service: service, clock: fake}
}

func (f *fixture) create(t *testing.T, owner ref.User, name string) workspace.WorkspaceInformation {
	t.Helper()
	info, err := f.service.CreateWorkspace(context.Background(), workspace.As(owner), workspace.CreateParams{Name: name})
	if err != nil {
		t.Fatalf("CreateWorkspace(%s): %v", name, err)
	}
	return info
}

func (f *fixture) save(t *testing.T, user ref.User, ws string, objects ...workspace.SaveObject) []workspace.ObjectInformation {
	t.Helper()
	infos, err := f.service.SaveObjects(context.Background(), workspace.As(user), workspace.SaveParams{
		Workspace: ref.MustWorkspace(ws),
		Objects:   objects,
	})
	if err != nil {
		t.Fatalf("SaveObjects(%s): %v", ws, err)
	}
	return infos
}

func (f *fixture) get(t *testing.T, user ref.User, reference string) *workspace.ObjectData {
	t.Helper()
	data, err := f.service.GetObjects(context.Background(), workspace.As(user), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{Identifier: ref.MustParseReference(reference)}},
	})
	if err != nil {
		t.Fatalf("GetObjects(%s): %v", reference, err)
	}
	return data[0]
}

func reads(name, platform string) workspace.SaveObject {
	return workspace.SaveObject{
		Name: name,
		Type: "Reads.Paired-1.0",
		Data: []byte(fmt.Sprintf(`{"platform": %q, "count": 100}`, platform)),
	}
}

func assembly(name, document string) workspace.SaveObject {
	return workspace.SaveObject{Name: name, Type: "Genome.Assembly-1.0", Data: []byte(document)}
}

func requireKind(t *testing.T, err error, kind fault.Kind, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error containing %q, got nil", kind, contains)
	}
	if got := fault.KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (error: %v)", got, kind, err)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Fatalf("error %q does not contain %q", err, contains)
	}
}

func TestCreateAndResolveByEveryLocator(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, alice, "alice:genomes")

	for _, locator := range []string{"alice:genomes", fmt.Sprint(created.ID)} {
		t.Run(locator, func(t *testing.T) {
			info, err := f.service.GetWorkspaceInfo(context.Background(), workspace.As(alice), ref.MustWorkspace(locator))
			if err != nil {
				t.Fatalf("GetWorkspaceInfo: %v", err)
			}
			if info.ID != created.ID {
				t.Errorf("ID = %d, want %d", info.ID, created.ID)
			}
			if info.Permission != permission.Owner {
				t.Errorf("Permission = %s, want owner", info.Permission)
			}
		})
	}
}

func TestDescriptionIsTruncatedOnRead(t *testing.T) {
	f := newFixture(t, nil)
	description := strings.Repeat("d", 1017)
	_, err := f.service.CreateWorkspace(context.Background(), workspace.As(alice), workspace.CreateParams{
		Name:        "lt",
		Description: description,
	})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	info, err := f.service.GetWorkspaceInfo(context.Background(), workspace.As(alice), ref.MustWorkspace("lt"))
	if err != nil {
		t.Fatalf("GetWorkspaceInfo: %v", err)
	}
	if info.Description != description[:1000] {
		t.Errorf("description has %d characters, want the first 1000", len(info.Description))
	}
	full, err := f.service.GetWorkspaceDescription(context.Background(), workspace.As(alice), ref.MustWorkspace("lt"))
	if err != nil {
		t.Fatalf("GetWorkspaceDescription: %v", err)
	}
	if full != description {
		t.Errorf("full description has %d characters, want 1017", len(full))
	}
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "taken")

	tests := []struct {
		name     string
		caller   workspace.Caller
		params   workspace.CreateParams
		kind     fault.Kind
		contains string
	}{
		{"anonymous", workspace.Anonymous, workspace.CreateParams{Name: "anything"}, fault.Authorization, "Anonymous users may not create workspaces"},
		{"other owner prefix", workspace.As(alice), workspace.CreateParams{Name: "bob:stuff"}, fault.Input, "bob"},
		{"numeric", workspace.As(alice), workspace.CreateParams{Name: "12345"}, fault.Input, "12345"},
		{"duplicate", workspace.As(bob), workspace.CreateParams{Name: "taken"}, fault.Input, "Workspace name taken is already in use"},
		{"non-admin override", workspace.Caller{User: alice, AsAdmin: true}, workspace.CreateParams{Name: "x"}, fault.Authorization, "User alice is not an administrator"},
		{
			"metadata too large", workspace.As(alice),
			workspace.CreateParams{Name: "big", Metadata: map[string]string{"k": strings.Repeat("v", 16000)}},
			fault.Resource, "exceeds the limit of 16000 bytes",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.service.CreateWorkspace(context.Background(), test.caller, test.params)
			requireKind(t, err, test.kind, test.contains)
		})
	}
}

func TestAdminMayCreateForAnyPrefix(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.CreateWorkspace(context.Background(), workspace.Caller{User: root, AsAdmin: true},
		workspace.CreateParams{Name: "bob:provisioned"})
	if err != nil {
		t.Fatalf("CreateWorkspace as admin: %v", err)
	}
}

func TestListenersFire(t *testing.T) {
	var events []string
	listener := workspace.ListenerFuncs{
		Created:     func(info workspace.WorkspaceInformation) { events = append(events, "created "+info.Name) },
		Cloned:      func(info workspace.WorkspaceInformation, source int64) { events = append(events, "cloned "+info.Name) },
		MetadataSet: func(info workspace.WorkspaceInformation) { events = append(events, "metadata "+info.Name) },
	}
	f := newFixture(t, func(cfg *workspace.Config) { cfg.Listeners = []workspace.Listener{listener} })
	ctx := context.Background()

	f.create(t, alice, "origin")
	if _, err := f.service.CloneWorkspace(ctx, workspace.As(alice), workspace.CloneParams{
		Source:       ref.MustWorkspace("origin"),
		CreateParams: workspace.CreateParams{Name: "copy"},
	}); err != nil {
		t.Fatalf("CloneWorkspace: %v", err)
	}
	if _, err := f.service.SetWorkspaceMetadata(ctx, workspace.As(alice), ref.MustWorkspace("copy"),
		map[string]string{"project": "x"}, nil); err != nil {
		t.Fatalf("SetWorkspaceMetadata: %v", err)
	}

	want := []string{"created origin", "cloned copy", "metadata copy"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestPermissionLevels(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "shared")
	f.save(t, alice, "shared", reads("r", "illumina"))

	levels := map[ref.User]permission.Permission{}
	for user, level := range map[string]permission.Permission{
		"reader": permission.Read, "writer": permission.Write, "admin": permission.Admin,
	} {
		handle := ref.MustParseUser(user)
		levels[handle] = level
		if err := f.service.SetPermissions(ctx, workspace.As(alice), ref.MustWorkspace("shared"), level, []ref.User{handle}); err != nil {
			t.Fatalf("SetPermissions(%s): %v", user, err)
		}
	}
	levels[bob] = permission.None

	actions := []struct {
		name     string
		required permission.Permission
		run      func(caller workspace.Caller) error
	}{
		{"get", permission.Read, func(caller workspace.Caller) error {
			_, err := f.service.GetObjectInfo(ctx, caller, []ref.ObjectIdentifier{ref.MustParseReference("shared/r")}, false)
			return err
		}},
		{"save", permission.Write, func(caller workspace.Caller) error {
			_, err := f.service.SaveObjects(ctx, caller, workspace.SaveParams{
				Workspace: ref.MustWorkspace("shared"),
				Objects:   []workspace.SaveObject{reads("r", "pacbio")},
			})
			return err
		}},
		{"describe", permission.Admin, func(caller workspace.Caller) error {
			return f.service.SetWorkspaceDescription(ctx, caller, ref.MustWorkspace("shared"), "text")
		}},
	}
	for user, level := range levels {
		for _, action := range actions {
			t.Run(user.String()+"/"+action.name, func(t *testing.T) {
				err := action.run(workspace.As(user))
				if level >= action.required {
					if err != nil {
						t.Fatalf("%s with %s: %v", action.name, level, err)
					}
					return
				}
				if err == nil {
					t.Fatalf("%s with %s succeeded, want denial", action.name, level)
				}
				kind := fault.KindOf(err)
				if kind != fault.Authorization && kind != fault.Inaccessible {
					t.Fatalf("%s with %s: kind %s (%v)", action.name, level, kind, err)
				}
				if !strings.Contains(err.Error(), "User "+user.String()+" may not") {
					t.Errorf("error %q does not name the user", err)
				}
			})
		}
	}
}

func TestAnonymousDenialMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "private")
	_, err := f.service.GetWorkspaceInfo(context.Background(), workspace.Anonymous, ref.MustWorkspace("private"))
	requireKind(t, err, fault.Authorization, "Anonymous users may not read workspace private")
}

func TestLockedWorkspace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.create(t, alice, "frozen")
	f.save(t, alice, "frozen", reads("r", "illumina"))

	if _, err := f.service.LockWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("frozen")); err != nil {
		t.Fatalf("LockWorkspace: %v", err)
	}
	lockedMessage := fmt.Sprintf("The workspace with id %d, name frozen, is locked and may not be modified", created.ID)

	_, err := f.service.SaveObjects(ctx, workspace.As(alice), workspace.SaveParams{
		Workspace: ref.MustWorkspace("frozen"),
		Objects:   []workspace.SaveObject{reads("r", "pacbio")},
	})
	requireKind(t, err, fault.Authorization, lockedMessage)

	err = f.service.SetObjectsHidden(ctx, workspace.As(alice), []ref.ObjectIdentifier{ref.MustParseReference("frozen/r")}, true)
	requireKind(t, err, fault.Authorization, lockedMessage)

	err = f.service.SetPermissions(ctx, workspace.As(alice), ref.MustWorkspace("frozen"), permission.Read, []ref.User{bob})
	requireKind(t, err, fault.Authorization, lockedMessage)

	_, err = f.service.LockWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("frozen"))
	requireKind(t, err, fault.Authorization, lockedMessage)

	_, err = f.service.LockWorkspace(ctx, workspace.Caller{User: root, AsAdmin: true}, ref.MustWorkspace("frozen"))
	requireKind(t, err, fault.Authorization, lockedMessage)

	if data := f.get(t, alice, "frozen/r"); string(data.Data) != `{"count":100,"platform":"illumina"}` {
		t.Errorf("read from locked workspace = %s", data.Data)
	}
}

func TestSaveAndGet(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, alice, "alice:genomes")
	infos := f.save(t, alice, "alice:genomes", workspace.SaveObject{
		Name:     "reads1",
		Type:     "Reads.Paired-1",
		Data:     []byte(`{"platform": "illumina", "count": 100}`),
		Metadata: map[string]string{"platform": "overridden", "lab": "west"},
	})

	info := infos[0]
	if want := (ref.Address{Workspace: created.ID, Object: 1, Version: 1}); info.Address != want {
		t.Errorf("Address = %s, want %s", info.Address, want)
	}
	if info.Type.String() != "Reads.Paired-1.0" {
		t.Errorf("Type = %s, want the absolute type Reads.Paired-1.0", info.Type)
	}
	if info.SavedBy != alice || info.WorkspaceName != "alice:genomes" || info.Name != "reads1" {
		t.Errorf("info = %+v", info)
	}
	wantMetadata := map[string]string{"platform": "illumina", "count": "100", "lab": "west"}
	for key, value := range wantMetadata {
		if info.Metadata[key] != value {
			t.Errorf("Metadata[%s] = %q, want %q", key, info.Metadata[key], value)
		}
	}

	canonical := `{"count":100,"platform":"illumina"}`
	if info.Size != int64(len(canonical)) {
		t.Errorf("Size = %d, want %d", info.Size, len(canonical))
	}
	if info.Checksum != blobstore.Sum([]byte(canonical)) {
		t.Errorf("Checksum = %s, want the checksum of the canonical document", info.Checksum)
	}
	data := f.get(t, alice, "alice:genomes/reads1")
	if string(data.Data) != canonical {
		t.Errorf("Data = %s, want %s", data.Data, canonical)
	}
	if data.Provenance.User != alice || !data.Provenance.Date.Equal(info.Saved) {
		t.Errorf("Provenance = %+v, want user alice at %v", data.Provenance, info.Saved)
	}
}

func TestSaveRejects(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "ws")

	tests := []struct {
		name     string
		object   workspace.SaveObject
		kind     fault.Kind
		contains string
	}{
		{"name and id", workspace.SaveObject{Name: "x", ObjectID: 1, Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"a"}`)},
			fault.Input, "Object #1: must provide one and only one of object name or id"},
		{"numeric name", workspace.SaveObject{Name: "42", Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"a"}`)},
			fault.Input, "Object #1"},
		{"missing id", workspace.SaveObject{ObjectID: 99, Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"a"}`)},
			fault.NotFound, "Object #1: No object with id 99 exists"},
		{"bad type", workspace.SaveObject{Name: "x", Type: "reads", Data: []byte(`{"platform":"a"}`)},
			fault.Input, "Object #1 has an invalid type"},
		{"schema violation", workspace.SaveObject{Name: "x", Type: "Reads.Paired-1.0", Data: []byte(`{"count":1}`)},
			fault.Input, "Document failed validation against Reads.Paired-1.0"},
		{"invalid json", workspace.SaveObject{Name: "x", Type: "Reads.Paired-1.0", Data: []byte(`{"platform":`)},
			fault.Input, "Document is not valid JSON"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.service.SaveObjects(context.Background(), workspace.As(alice), workspace.SaveParams{
				Workspace: ref.MustWorkspace("ws"),
				Objects:   []workspace.SaveObject{test.object},
			})
			requireKind(t, err, test.kind, test.contains)
		})
	}
}

func TestSaveIsAtomic(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, alice, "ws")
	_, err := f.service.SaveObjects(context.Background(), workspace.As(alice), workspace.SaveParams{
		Workspace: ref.MustWorkspace("ws"),
		Objects: []workspace.SaveObject{
			reads("good", "illumina"),
			{Name: "bad", Type: "Reads.Paired-1.0", Data: []byte(`{}`)},
		},
	})
	requireKind(t, err, fault.Input, "Object #2")

	info, err := f.service.GetWorkspaceInfo(context.Background(), workspace.As(alice), ref.MustWorkspace("ws"))
	if err != nil {
		t.Fatalf("GetWorkspaceInfo: %v", err)
	}
	if info.MaxObjectID != 0 || info.ID != created.ID {
		t.Errorf("MaxObjectID = %d after a failed save, want 0", info.MaxObjectID)
	}
}

func TestVersionNumbering(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "ws")
	first := f.save(t, alice, "ws", reads("r", "illumina"))[0]
	second := f.save(t, alice, "ws", reads("r", "pacbio"))[0]
	byID := f.save(t, alice, "ws", workspace.SaveObject{
		ObjectID: first.Address.Object,
		Type:     "Reads.Paired-1.0",
		Data:     []byte(`{"platform":"nanopore"}`),
	})[0]

	for i, info := range []workspace.ObjectInformation{first, second, byID} {
		if info.Address.Object != first.Address.Object || info.Address.Version != i+1 {
			t.Errorf("save %d address = %s, want object %d version %d", i+1, info.Address, first.Address.Object, i+1)
		}
	}

	history, err := f.service.GetObjectHistory(context.Background(), workspace.As(alice), ref.MustParseReference("ws/r"))
	if err != nil {
		t.Fatalf("GetObjectHistory: %v", err)
	}
	if len(history) != 3 || history[2].Metadata["platform"] != "nanopore" {
		t.Errorf("history = %+v", history)
	}
	old := f.get(t, alice, "ws/r/1")
	if string(old.Data) != `{"count":100,"platform":"illumina"}` {
		t.Errorf("version 1 data = %s", old.Data)
	}
}

func TestChecksumIgnoresKeyOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "ws")
	infos := f.save(t, alice, "ws",
		workspace.SaveObject{Name: "a", Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"x","count":5}`)},
		workspace.SaveObject{Name: "b", Type: "Reads.Paired-1.0", Data: []byte(`{ "count": 5, "platform": "x" }`)},
	)
	if infos[0].Checksum != infos[1].Checksum {
		t.Errorf("checksums differ: %s vs %s", infos[0].Checksum, infos[1].Checksum)
	}
}

func TestAutoNaming(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("auto1", "illumina"), reads("auto3", "illumina"))

	unnamed := workspace.SaveObject{Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"x"}`)}
	infos := f.save(t, alice, "ws", unnamed, unnamed, unnamed)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if got := strings.Join(names, ","); got != "auto2,auto4,auto5" {
		t.Errorf("auto names = %s, want auto2,auto4,auto5", got)
	}
}

func TestReferencesAreResolvedAndRewritten(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, alice, "alice:genomes")
	readsInfo := f.save(t, alice, "alice:genomes", reads("reads1", "illumina"))[0]

	info := f.save(t, alice, "alice:genomes", assembly("asm",
		`{"name": "asm", "reads": "alice:genomes/reads1", "accession": "GCA_000001405"}`))[0]

	want := readsInfo.Address
	if len(info.Metadata) != 1 || info.Metadata["name"] != "asm" {
		t.Errorf("Metadata = %v", info.Metadata)
	}
	data := f.get(t, alice, "alice:genomes/asm")
	expected := fmt.Sprintf(`{"accession":"GCA_000001405","name":"asm","reads":"%d/1/1"}`, created.ID)
	if string(data.Data) != expected {
		t.Errorf("Data = %s, want %s", data.Data, expected)
	}
	if len(data.References) != 1 || data.References[0] != want {
		t.Errorf("References = %v, want [%s]", data.References, want)
	}
	if string(data.Extract) != `{"name":"asm"}` {
		t.Errorf("Extract = %s", data.Extract)
	}

	// Saving the rewritten document again changes nothing.
	again := f.save(t, alice, "alice:genomes", workspace.SaveObject{
		Name: "asm2", Type: "Genome.Assembly-1.0", Data: data.Data,
	})[0]
	if again.Checksum != info.Checksum {
		t.Errorf("resaving an absolute document changed the checksum")
	}
}

func TestReferenceFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.create(t, alice, "alice:genomes")
	f.save(t, alice, "alice:genomes", reads("reads1", "illumina"), assembly("other", `{"name":"other"}`))
	f.save(t, alice, "alice:genomes", reads("gone", "illumina"))
	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), []ref.ObjectIdentifier{ref.MustParseReference("alice:genomes/gone")}, true); err != nil {
		t.Fatalf("SetObjectsDeleted: %v", err)
	}
	f.create(t, bob, "bob:private")
	f.save(t, bob, "bob:private", reads("secret", "illumina"))

	tests := []struct {
		name     string
		document string
		kind     fault.Kind
		contains string
	}{
		{"wrong type", `{"reads": "alice:genomes/other"}`, fault.Integrity,
			"has type Genome.Assembly-1.0, which is not one of the allowed types [Reads.Paired-1]"},
		{"missing", `{"reads": "alice:genomes/nothing"}`, fault.NotFound, "at /reads"},
		{"deleted", `{"reads": "alice:genomes/gone"}`, fault.Deleted, "has been deleted"},
		{"unreadable", `{"reads": "bob:private/secret"}`, fault.Inaccessible, "User alice may not read workspace bob:private"},
		{"malformed", `{"reads": "a/b/c/d"}`, fault.Input, "a/b/c/d"},
		{"missing version", fmt.Sprintf(`{"reads": "%d/1/9"}`, created.ID), fault.NotFound, "No version 9"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.service.SaveObjects(ctx, workspace.As(alice), workspace.SaveParams{
				Workspace: ref.MustWorkspace("alice:genomes"),
				Objects:   []workspace.SaveObject{assembly("asm", test.document)},
			})
			requireKind(t, err, test.kind, test.contains)
			if !strings.HasPrefix(err.Error(), "Object #1 has invalid reference") {
				t.Errorf("error %q is not attributed to object #1", err)
			}
		})
	}
}

func TestReferenceKeyCollision(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "alice:genomes")
	target := f.save(t, alice, "alice:genomes", assembly("asm1", `{"name":"asm1"}`))[0]

	document := fmt.Sprintf(`{"aliases": {"alice:genomes/asm1": "a", "%d/%d": "b"}}`,
		target.Address.Workspace, target.Address.Object)
	_, err := f.service.SaveObjects(context.Background(), workspace.As(alice), workspace.SaveParams{
		Workspace: ref.MustWorkspace("alice:genomes"),
		Objects:   []workspace.SaveObject{assembly("asm2", document)},
	})
	requireKind(t, err, fault.Integrity, "rewriting would lose an entry")
	if !strings.Contains(err.Error(), target.Address.String()) {
		t.Errorf("error %q does not name the shared target %s", err, target.Address)
	}
}

func TestIdentifierCap(t *testing.T) {
	f := newFixture(t, func(cfg *workspace.Config) { cfg.MaxIdentifiers = 2 })
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "illumina"))
	_, err := f.service.SaveObjects(context.Background(), workspace.As(alice), workspace.SaveParams{
		Workspace: ref.MustWorkspace("ws"),
		Objects: []workspace.SaveObject{
			assembly("a1", `{"reads": "ws/r", "accession": "X1"}`),
			assembly("a2", `{"reads": "ws/r", "accession": "X2"}`),
		},
	})
	requireKind(t, err, fault.Resource, "Object #2 brings the number of distinct identifiers in the call to 3, exceeding the limit of 2")
}

func TestProvenanceInputsAreResolved(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "ws")
	source := f.save(t, alice, "ws", reads("r", "illumina"))[0]

	object := reads("derived", "pacbio")
	object.Provenance = []provenance.Action{{
		Service:      "assembler",
		InputObjects: []string{"ws/r"},
	}}
	f.save(t, alice, "ws", object)

	data := f.get(t, alice, "ws/derived")
	actions := data.Provenance.Actions
	if len(actions) != 1 || len(actions[0].ResolvedObjects) != 1 || actions[0].ResolvedObjects[0] != source.Address {
		t.Fatalf("provenance actions = %+v, want input resolved to %s", actions, source.Address)
	}
	if actions[0].InputObjects[0] != "ws/r" {
		t.Errorf("input object rewritten to %s; provenance inputs keep their original text", actions[0].InputObjects[0])
	}
}

func TestSizeLimits(t *testing.T) {
	f := newFixture(t, func(cfg *workspace.Config) {
		cfg.Limits.ObjectBytes = 20
		cfg.Limits.MetadataBytes = 30
	})
	f.create(t, alice, "ws")
	tests := []struct {
		name     string
		object   workspace.SaveObject
		contains string
	}{
		{
			"document",
			workspace.SaveObject{Name: "big", Type: "Reads.Paired-2.0", Data: []byte(`{"platform":"abcdef"}`)},
			"Object #1 document size 21 exceeds the limit of 20 bytes",
		},
		{
			"metadata",
			workspace.SaveObject{Name: "m", Type: "Reads.Paired-2.0", Data: []byte(`{"platform":"a"}`),
				Metadata: map[string]string{"description": strings.Repeat("x", 40)}},
			"Object #1 metadata size",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.service.SaveObjects(context.Background(), workspace.As(alice), workspace.SaveParams{
				Workspace: ref.MustWorkspace("ws"),
				Objects:   []workspace.SaveObject{test.object},
			})
			requireKind(t, err, fault.Resource, test.contains)
		})
	}
}

func TestMarkupCharactersAreMeasuredUnescaped(t *testing.T) {
	document := `{"platform":"<&>"}`
	f := newFixture(t, func(cfg *workspace.Config) {
		cfg.Limits.ObjectBytes = int64(len(document))
	})
	f.create(t, alice, "ws")
	infos := f.save(t, alice, "ws",
		workspace.SaveObject{Name: "markup", Type: "Reads.Paired-2.0", Data: []byte(document)},
		assembly("tagged", `{"name": "<b>&</>"}`),
	)
	if infos[0].Size != int64(len(document)) {
		t.Errorf("Size = %d, want %d", infos[0].Size, len(document))
	}
	if data := f.get(t, alice, "ws/markup"); string(data.Data) != document {
		t.Errorf("stored document = %s, want %s", data.Data, document)
	}
	if data := f.get(t, alice, "ws/tagged"); string(data.Extract) != `{"name":"<b>&</>"}` {
		t.Errorf("extract = %s", data.Extract)
	}
}

func TestSpilledDocumentsAreStored(t *testing.T) {
	f := newFixture(t, func(cfg *workspace.Config) { cfg.Limits.BufferThreshold = 8 })
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "a-platform-name-longer-than-the-threshold"))
	data := f.get(t, alice, "ws/r")
	if !strings.Contains(string(data.Data), "a-platform-name-longer-than-the-threshold") {
		t.Errorf("spilled document read back as %s", data.Data)
	}
}

func TestGetObjectsSelectionAndBudget(t *testing.T) {
	f := newFixture(t, func(cfg *workspace.Config) { cfg.Limits.ResponseBytes = 40 })
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "illumina"))

	selected, err := f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{
			Identifier: ref.MustParseReference("ws/r"),
			Paths:      []string{"/platform"},
		}},
	})
	if err != nil {
		t.Fatalf("GetObjects with paths: %v", err)
	}
	if string(selected[0].Data) != `{"platform":"illumina"}` {
		t.Errorf("selected data = %s", selected[0].Data)
	}

	_, err = f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{
			{Identifier: ref.MustParseReference("ws/r")},
			{Identifier: ref.MustParseReference("ws/r")},
		},
	})
	requireKind(t, err, fault.Resource, "Object #2 brings the response to 70 bytes, exceeding the limit of 40 bytes")

	_, err = f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{
			Identifier:  ref.MustParseReference("ws/r"),
			Paths:       []string{"/missing"},
			StrictPaths: true,
		}},
	})
	requireKind(t, err, fault.Input, "no value at /missing")
}

// blobCounter counts document reads.
type blobCounter struct {
	backend.Backend
	opens int
}

func (b *blobCounter) OpenBlob(ctx context.Context, checksum blobstore.Checksum) (io.ReadCloser, error) {
	b.opens++
	return b.Backend.OpenBlob(ctx, checksum)
}

func TestOverBudgetDocumentIsNotRead(t *testing.T) {
	var counter *blobCounter
	f := newFixture(t, func(cfg *workspace.Config) {
		cfg.Limits.ResponseBytes = 20
		counter = &blobCounter{Backend: cfg.Backend}
		cfg.Backend = counter
	})
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "illumina"))
	counter.opens = 0

	_, err := f.service.GetObjects(context.Background(), workspace.As(alice), workspace.GetParams{
		Objects:      []workspace.ObjectSpecification{{Identifier: ref.MustParseReference("ws/r")}},
		IgnoreErrors: true,
	})
	requireKind(t, err, fault.Resource, "Object #1 brings the response to 35 bytes, exceeding the limit of 20 bytes")
	if counter.opens != 0 {
		t.Errorf("document blob opened %d times for an over-budget read", counter.opens)
	}

	selected, err := f.service.GetObjects(context.Background(), workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{
			Identifier: ref.MustParseReference("ws/r"),
			Paths:      []string{"/count"},
		}},
	})
	if err != nil {
		t.Fatalf("sub-selection within budget: %v", err)
	}
	if string(selected[0].Data) != `{"count":100}` {
		t.Errorf("selected data = %s", selected[0].Data)
	}
}

func TestGetObjectsBestEffort(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "illumina"))

	specs := []workspace.ObjectSpecification{
		{Identifier: ref.MustParseReference("ws/r")},
		{Identifier: ref.MustParseReference("ws/missing")},
		{Identifier: ref.MustParseReference("nowhere/r")},
	}
	_, err := f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{Objects: specs})
	requireKind(t, err, fault.NotFound, "No object with name missing exists")
	var objectErr *resolve.ObjectError
	if !errors.As(err, &objectErr) || objectErr.Identifier.String() != "ws/missing" {
		t.Errorf("error does not carry the identifier: %#v", err)
	}

	results, err := f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{Objects: specs, IgnoreErrors: true})
	if err != nil {
		t.Fatalf("GetObjects best effort: %v", err)
	}
	if results[0] == nil || results[1] != nil || results[2] != nil {
		t.Errorf("best effort results = %v, want only the first present", results)
	}

	infos, err := f.service.GetObjectInfo(ctx, workspace.As(alice), []ref.ObjectIdentifier{
		ref.MustParseReference("ws/missing"), ref.MustParseReference("ws/r"),
	}, true)
	if err != nil {
		t.Fatalf("GetObjectInfo best effort: %v", err)
	}
	if infos[0] != nil || infos[1] == nil || infos[1].Name != "r" {
		t.Errorf("GetObjectInfo best effort = %v", infos)
	}
}

func TestDeleteAndUndeleteObjects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	original := f.save(t, alice, "ws", reads("r", "illumina"))[0]
	target := []ref.ObjectIdentifier{ref.MustParseReference("ws/r")}

	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), target, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{Identifier: target[0]}},
	})
	requireKind(t, err, fault.Deleted, "has been deleted")

	err = f.service.SetObjectsDeleted(ctx, workspace.As(alice), target, true)
	requireKind(t, err, fault.Deleted, "has been deleted")

	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), target, false); err != nil {
		t.Fatalf("undelete: %v", err)
	}
	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), target, false); err != nil {
		t.Fatalf("undeleting a live object: %v", err)
	}
	data := f.get(t, alice, "ws/r")
	if data.Info.Checksum != original.Checksum || data.Info.Address != original.Address {
		t.Errorf("undeleted object = %+v, want %+v", data.Info, original)
	}

	// A save to a deleted object undeletes it with the next version.
	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), target, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next := f.save(t, alice, "ws", reads("r", "pacbio"))[0]
	if next.Address.Version != 2 {
		t.Errorf("save after delete got version %d, want 2", next.Address.Version)
	}
}

func TestHiddenObjectsAreListedOnRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("visible", "a"), reads("secret", "b"))
	if err := f.service.SetObjectsHidden(ctx, workspace.As(alice), []ref.ObjectIdentifier{ref.MustParseReference("ws/secret")}, true); err != nil {
		t.Fatalf("SetObjectsHidden: %v", err)
	}

	for _, test := range []struct {
		showHidden bool
		want       string
	}{
		{false, "visible"},
		{true, "visible,secret"},
	} {
		infos, err := f.service.ListObjects(ctx, workspace.As(alice), workspace.ListObjectsParams{
			Workspaces: []ref.WorkspaceLocator{ref.MustWorkspace("ws")},
			ShowHidden: test.showHidden,
		})
		if err != nil {
			t.Fatalf("ListObjects: %v", err)
		}
		var names []string
		for _, info := range infos {
			names = append(names, info.Name)
		}
		if got := strings.Join(names, ","); got != test.want {
			t.Errorf("ShowHidden=%v listed %s, want %s", test.showHidden, got, test.want)
		}
	}
}

func TestListObjectsByTypeAcrossWorkspaces(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "one")
	f.create(t, alice, "two")
	f.save(t, alice, "one", reads("r1", "a"))
	f.save(t, alice, "one", workspace.SaveObject{Name: "r2", Type: "Reads.Paired-2.0", Data: []byte(`{"platform":"b"}`)})
	f.save(t, alice, "two", reads("r3", "c"))
	f.save(t, alice, "two", assembly("asm", `{"name":"x"}`))

	infos, err := f.service.ListObjects(ctx, workspace.As(alice), workspace.ListObjectsParams{
		Workspaces: []ref.WorkspaceLocator{ref.MustWorkspace("one"), ref.MustWorkspace("two")},
		Type:       "Reads.Paired-1",
	})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if got := strings.Join(names, ","); got != "r1,r3" {
		t.Errorf("listed %s, want r1,r3", got)
	}

	_, err = f.service.ListObjects(ctx, workspace.As(alice), workspace.ListObjectsParams{})
	requireKind(t, err, fault.Input, "At least one filter must be specified")
}

func TestListObjectsByTypeHonorsPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "mine")
	f.create(t, bob, "public")
	f.create(t, bob, "closed")
	f.save(t, alice, "mine", reads("a", "x"))
	f.save(t, bob, "public", reads("b", "x"))
	f.save(t, bob, "closed", reads("c", "x"))
	if err := f.service.SetGlobalPermission(ctx, workspace.As(bob), ref.MustWorkspace("public"), permission.Read); err != nil {
		t.Fatalf("SetGlobalPermission: %v", err)
	}

	for _, test := range []struct {
		excludeGlobal bool
		want          string
	}{
		{false, "a,b"},
		{true, "a"},
	} {
		infos, err := f.service.ListObjects(ctx, workspace.As(alice), workspace.ListObjectsParams{
			Type:          "Reads.Paired",
			ExcludeGlobal: test.excludeGlobal,
		})
		if err != nil {
			t.Fatalf("ListObjects: %v", err)
		}
		var names []string
		for _, info := range infos {
			names = append(names, info.Name)
		}
		if got := strings.Join(names, ","); got != test.want {
			t.Errorf("ExcludeGlobal=%v listed %s, want %s", test.excludeGlobal, got, test.want)
		}
	}
}

func TestCopyRevertRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "source")
	f.create(t, alice, "dest")
	f.save(t, alice, "source", reads("target", "other"))
	original := f.save(t, alice, "source", workspace.SaveObject{
		Name:     "r",
		Type:     "Reads.Paired-1.0",
		Data:     []byte(`{"platform":"illumina"}`),
		Metadata: map[string]string{"lab": "east"},
	})[0]
	f.save(t, alice, "source", reads("r", "pacbio"))

	copied, err := f.service.CopyObject(ctx, workspace.As(alice),
		ref.MustParseReference("source/r/1"), ref.MustParseReference("dest/copy"))
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if copied.Address.Version != 1 || copied.Checksum != original.Checksum {
		t.Fatalf("copied = %+v, want version 1 with the original checksum", copied)
	}
	f.save(t, alice, "dest", reads("copy", "changed"))

	reverted, err := f.service.RevertObject(ctx, workspace.As(alice), ref.MustParseReference("dest/copy/1"))
	if err != nil {
		t.Fatalf("RevertObject: %v", err)
	}
	if reverted.Address.Version != 3 {
		t.Errorf("reverted version = %d, want 3", reverted.Address.Version)
	}
	if reverted.Checksum != original.Checksum || reverted.Size != original.Size {
		t.Errorf("reverted content differs from the original")
	}
	for key, value := range original.Metadata {
		if reverted.Metadata[key] != value {
			t.Errorf("reverted Metadata[%s] = %q, want %q", key, reverted.Metadata[key], value)
		}
	}
	data := f.get(t, alice, "dest/copy")
	if string(data.Data) != `{"platform":"illumina"}` {
		t.Errorf("reverted data = %s", data.Data)
	}

	_, err = f.service.RevertObject(ctx, workspace.As(alice), ref.MustParseReference("dest/copy"))
	requireKind(t, err, fault.Input, "A version must be specified")
}

func TestCopyFullHistoryKeepsTargetHidden(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "a"))
	f.save(t, alice, "ws", reads("r", "b"))
	f.save(t, alice, "ws", workspace.SaveObject{Name: "hidden", Hidden: true, Type: "Reads.Paired-1.0", Data: []byte(`{"platform":"h"}`)})

	copied, err := f.service.CopyObject(ctx, workspace.As(alice), ref.MustParseReference("ws/r"), ref.MustParseReference("ws/hidden"))
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if copied.Address.Version != 3 || !copied.Hidden {
		t.Errorf("copied = %+v, want version 3 and still hidden", copied)
	}
}

func TestCopySourceInaccessible(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "source")
	f.create(t, alice, "dest")
	source := f.save(t, alice, "source", reads("r", "illumina"))[0]
	if _, err := f.service.CopyObject(ctx, workspace.As(alice), ref.MustParseReference("source/r"), ref.MustParseReference("dest/r")); err != nil {
		t.Fatalf("CopyObject: %v", err)
	}

	before := f.get(t, alice, "dest/r")
	if before.CopiedFrom != source.Address || before.CopySourceInaccessible {
		t.Errorf("before deletion: CopiedFrom = %s, inaccessible = %v", before.CopiedFrom, before.CopySourceInaccessible)
	}

	if err := f.service.SetObjectsDeleted(ctx, workspace.As(alice), []ref.ObjectIdentifier{ref.MustParseReference("source/r")}, true); err != nil {
		t.Fatalf("SetObjectsDeleted: %v", err)
	}
	after := f.get(t, alice, "dest/r")
	if !after.CopiedFrom.IsZero() || !after.CopySourceInaccessible {
		t.Errorf("after deletion: CopiedFrom = %s, inaccessible = %v", after.CopiedFrom, after.CopySourceInaccessible)
	}
	if string(after.Data) != string(before.Data) {
		t.Errorf("copy content changed after its source was deleted")
	}
}

func TestCopyPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "source")
	f.create(t, bob, "dest")
	f.save(t, alice, "source", reads("r", "x"))

	_, err := f.service.CopyObject(ctx, workspace.As(bob), ref.MustParseReference("source/r"), ref.MustParseReference("dest/r"))
	requireKind(t, err, fault.Inaccessible, "User bob may not read workspace source")

	if err := f.service.SetPermissions(ctx, workspace.As(alice), ref.MustWorkspace("source"), permission.Read, []ref.User{bob}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	if _, err := f.service.CopyObject(ctx, workspace.As(bob), ref.MustParseReference("source/r"), ref.MustParseReference("dest/r")); err != nil {
		t.Fatalf("CopyObject with read on source: %v", err)
	}
	_, err = f.service.CopyObject(ctx, workspace.As(bob), ref.MustParseReference("dest/r"), ref.MustParseReference("source/stolen"))
	requireKind(t, err, fault.Authorization, "User bob may not write to workspace source")
}

func TestRenameObject(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("a", "x"), reads("b", "x"))

	renamed, err := f.service.RenameObject(ctx, workspace.As(alice), ref.MustParseReference("ws/a"), "c")
	if err != nil {
		t.Fatalf("RenameObject: %v", err)
	}
	if renamed.Name != "c" {
		t.Errorf("Name = %s, want c", renamed.Name)
	}
	_, err = f.service.RenameObject(ctx, workspace.As(alice), ref.MustParseReference("ws/c"), "b")
	requireKind(t, err, fault.Input, "There is already an object named b")
}

func TestWorkspaceDeleteAndUndelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "x"))

	err := f.service.DeleteWorkspace(ctx, workspace.As(bob), ref.MustWorkspace("ws"))
	requireKind(t, err, fault.Authorization, "User bob may not delete workspace ws")

	if err := f.service.DeleteWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("ws")); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	_, err = f.service.GetObjects(ctx, workspace.As(alice), workspace.GetParams{
		Objects: []workspace.ObjectSpecification{{Identifier: ref.MustParseReference("ws/r")}},
	})
	requireKind(t, err, fault.Deleted, "Workspace ws is deleted")

	listed, err := f.service.ListWorkspaces(ctx, workspace.As(alice), workspace.ListWorkspacesParams{ShowDeleted: true})
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(listed) != 1 || !listed[0].Deleted {
		t.Errorf("ListWorkspaces with deleted = %+v", listed)
	}

	if _, err := f.service.UndeleteWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("ws")); err != nil {
		t.Fatalf("UndeleteWorkspace: %v", err)
	}
	if data := f.get(t, alice, "ws/r"); data.Info.Address.Version != 1 {
		t.Errorf("object after undelete = %+v", data.Info)
	}
}

func TestRenameWorkspace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.create(t, alice, "old")
	f.create(t, alice, "other")

	if _, err := f.service.RenameWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("old"), "alice:new"); err != nil {
		t.Fatalf("RenameWorkspace: %v", err)
	}
	info, err := f.service.GetWorkspaceInfo(ctx, workspace.As(alice), ref.MustWorkspace("alice:new"))
	if err != nil || info.ID != created.ID {
		t.Fatalf("lookup by new name = %+v, %v", info, err)
	}
	_, err = f.service.GetWorkspaceInfo(ctx, workspace.As(alice), ref.MustWorkspace("old"))
	requireKind(t, err, fault.NotFound, "No workspace with name old exists")

	_, err = f.service.RenameWorkspace(ctx, workspace.As(alice), ref.MustWorkspace("alice:new"), "other")
	requireKind(t, err, fault.Input, "Workspace name other is already in use")
}

func TestSetWorkspaceMetadata(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.service.CreateWorkspace(ctx, workspace.As(alice), workspace.CreateParams{
		Name:     "ws",
		Metadata: map[string]string{"keep": "1", "drop": "2"},
	})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	info, err := f.service.SetWorkspaceMetadata(ctx, workspace.As(alice), ref.MustWorkspace("ws"),
		map[string]string{"add": "3"}, []string{"drop"})
	if err != nil {
		t.Fatalf("SetWorkspaceMetadata: %v", err)
	}
	if len(info.Metadata) != 2 || info.Metadata["keep"] != "1" || info.Metadata["add"] != "3" {
		t.Errorf("Metadata = %v", info.Metadata)
	}

	_, err = f.service.SetWorkspaceMetadata(ctx, workspace.As(alice), ref.MustWorkspace("ws"),
		map[string]string{"huge": strings.Repeat("x", 16000)}, nil)
	requireKind(t, err, fault.Resource, "Workspace metadata size")
}

func TestGetPermissionsVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	if err := f.service.SetPermissions(ctx, workspace.As(alice), ref.MustWorkspace("ws"), permission.Write, []ref.User{bob}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	if err := f.service.SetGlobalPermission(ctx, workspace.As(alice), ref.MustWorkspace("ws"), permission.Read); err != nil {
		t.Fatalf("SetGlobalPermission: %v", err)
	}

	full, err := f.service.GetPermissions(ctx, workspace.As(bob), ref.MustWorkspace("ws"))
	if err != nil {
		t.Fatalf("GetPermissions as writer: %v", err)
	}
	if len(full) != 3 || full[alice] != permission.Owner || full[bob] != permission.Write || full[ref.AllUsers] != permission.Read {
		t.Errorf("writer sees %v", full)
	}

	limited, err := f.service.GetPermissions(ctx, workspace.As(carol), ref.MustWorkspace("ws"))
	if err != nil {
		t.Fatalf("GetPermissions as reader: %v", err)
	}
	if len(limited) != 2 || limited[carol] != permission.Read || limited[ref.AllUsers] != permission.Read {
		t.Errorf("global reader sees %v", limited)
	}

	err = f.service.SetPermissions(ctx, workspace.As(bob), ref.MustWorkspace("ws"), permission.Admin, []ref.User{bob})
	requireKind(t, err, fault.Authorization, "User bob may only reduce their own permission")

	err = f.service.SetGlobalPermission(ctx, workspace.As(alice), ref.MustWorkspace("ws"), permission.Write)
	requireKind(t, err, fault.Input, "Global permissions cannot be greater than read")
}

func TestCloneWorkspace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "origin")
	kept := f.save(t, alice, "origin", reads("kept", "a"))[0]
	f.save(t, alice, "origin", reads("kept", "b"), reads("excluded", "c"))

	clone, err := f.service.CloneWorkspace(ctx, workspace.As(bob), workspace.CloneParams{
		Source:       ref.MustWorkspace("origin"),
		CreateParams: workspace.CreateParams{Name: "clone"},
	})
	requireKind(t, err, fault.Authorization, "User bob may not read workspace origin")

	clone, err = f.service.CloneWorkspace(ctx, workspace.As(alice), workspace.CloneParams{
		Source:       ref.MustWorkspace("origin"),
		CreateParams: workspace.CreateParams{Name: "clone", Description: "copy of origin"},
		Exclude:      []ref.ObjectLocator{mustObject(t, "excluded")},
	})
	if err != nil {
		t.Fatalf("CloneWorkspace: %v", err)
	}
	if clone.Owner != alice || clone.Description != "copy of origin" {
		t.Errorf("clone = %+v", clone)
	}
	history, err := f.service.GetObjectHistory(ctx, workspace.As(alice), ref.MustParseReference("clone/kept"))
	if err != nil {
		t.Fatalf("GetObjectHistory: %v", err)
	}
	if len(history) != 2 || history[0].Address.Object != kept.Address.Object {
		t.Errorf("cloned history = %+v", history)
	}
	_, err = f.service.GetObjectInfo(ctx, workspace.As(alice), []ref.ObjectIdentifier{ref.MustParseReference("clone/excluded")}, false)
	requireKind(t, err, fault.NotFound, "No object with name excluded exists")
}

func mustObject(t *testing.T, name string) ref.ObjectLocator {
	t.Helper()
	locator, err := ref.ObjectByName(name)
	if err != nil {
		t.Fatalf("ObjectByName(%s): %v", name, err)
	}
	return locator
}

func TestListReferencingObjects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "ws")
	f.create(t, bob, "bobs")
	f.save(t, alice, "ws", reads("r", "x"))
	f.save(t, alice, "ws", assembly("mine", `{"reads":"ws/r"}`))
	if err := f.service.SetPermissions(ctx, workspace.As(alice), ref.MustWorkspace("ws"), permission.Read, []ref.User{bob}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	f.save(t, bob, "bobs", assembly("theirs", `{"reads":"ws/r"}`))

	for _, test := range []struct {
		user ref.User
		want string
	}{
		{alice, "mine"},
		{bob, "mine,theirs"},
	} {
		infos, err := f.service.ListReferencingObjects(ctx, workspace.As(test.user), ref.MustParseReference("ws/r"))
		if err != nil {
			t.Fatalf("ListReferencingObjects as %s: %v", test.user, err)
		}
		var names []string
		for _, info := range infos {
			names = append(names, info.Name)
		}
		if got := strings.Join(names, ","); got != test.want {
			t.Errorf("%s sees %s, want %s", test.user, got, test.want)
		}
	}
}

func TestListWorkspacesFilters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "a1")
	f.create(t, bob, "b1")
	f.create(t, bob, "b2")
	if err := f.service.SetPermissions(ctx, workspace.As(bob), ref.MustWorkspace("b1"), permission.Write, []ref.User{alice}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}

	tests := []struct {
		name   string
		caller workspace.Caller
		params workspace.ListWorkspacesParams
		want   string
	}{
		{"readable", workspace.As(alice), workspace.ListWorkspacesParams{}, "a1,b1"},
		{"owner filter", workspace.As(alice), workspace.ListWorkspacesParams{Owners: []ref.User{bob}}, "b1"},
		{"admin floor", workspace.As(alice), workspace.ListWorkspacesParams{MinPermission: permission.Admin}, "a1"},
		{"administrator", workspace.Caller{User: root, AsAdmin: true}, workspace.ListWorkspacesParams{}, "a1,b1,b2"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			infos, err := f.service.ListWorkspaces(ctx, test.caller, test.params)
			if err != nil {
				t.Fatalf("ListWorkspaces: %v", err)
			}
			var names []string
			for _, info := range infos {
				names = append(names, info.Name)
			}
			if got := strings.Join(names, ","); got != test.want {
				t.Errorf("listed %s, want %s", got, test.want)
			}
		})
	}
}

func TestModifiedTimeAdvancesOnMutation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.create(t, alice, "ws")
	f.save(t, alice, "ws", reads("r", "x"))
	info, err := f.service.GetWorkspaceInfo(ctx, workspace.As(alice), ref.MustWorkspace("ws"))
	if err != nil {
		t.Fatalf("GetWorkspaceInfo: %v", err)
	}
	if !info.Modified.After(created.Modified) {
		t.Errorf("Modified %v did not advance past %v after a save", info.Modified, created.Modified)
	}
}
