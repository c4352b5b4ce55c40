// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

// Listener observes workspace lifecycle events. Calls are made
// synchronously after the change commits, in registration order.
// Listeners must not block and cannot veto a change.
type Listener interface {
	WorkspaceCreated(info WorkspaceInformation)
	WorkspaceCloned(info WorkspaceInformation, source int64)
	WorkspaceMetadataSet(info WorkspaceInformation)
}

// ListenerFuncs adapts optional functions to Listener. Nil fields are
// ignored.
type ListenerFuncs struct {
	Created     func(info WorkspaceInformation)
	Cloned      func(info WorkspaceInformation, source int64)
	MetadataSet func(info WorkspaceInformation)
}

// WorkspaceCreated implements Listener.
func (f ListenerFuncs) WorkspaceCreated(info WorkspaceInformation) {
	if f.Created != nil {
		f.Created(info)
	}
}

// WorkspaceCloned implements Listener.
func (f ListenerFuncs) WorkspaceCloned(info WorkspaceInformation, source int64) {
	if f.Cloned != nil {
		f.Cloned(info, source)
	}
}

// WorkspaceMetadataSet implements Listener.
func (f ListenerFuncs) WorkspaceMetadataSet(info WorkspaceInformation) {
	if f.MetadataSet != nil {
		f.MetadataSet(info)
	}
}

func (s *Service) notifyCreated(info WorkspaceInformation) {
	for _, listener := range s.listeners {
		listener.WorkspaceCreated(info)
	}
}

func (s *Service) notifyCloned(info WorkspaceInformation, source int64) {
	for _, listener := range s.listeners {
		listener.WorkspaceCloned(info, source)
	}
}

func (s *Service) notifyMetadataSet(info WorkspaceInformation) {
	for _, listener := range s.listeners {
		listener.WorkspaceMetadataSet(info)
	}
}
