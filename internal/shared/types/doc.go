// Package types provides shared data structures for the preview service.
//
// These types cross package boundaries: the persistence layer hands the
// bundle engine a Project, the sandbox host hands callers an
// ExecutionSignal, and the deploy layer records Deployments.
//
// Core Types:
//   - SourceFile: one persisted project file (path, content, language)
//   - Project: a titled, ordered snapshot of SourceFiles
//   - ExecutionSignal: the success/error result relayed out of a sandbox
//   - WireMessage: the cross-document message carrying a signal
//   - Deployment: a permanently published copy of a project
//
// Example Usage:
//
//	project := &types.Project{
//	    ID:    "landing",
//	    Title: "Landing Page",
//	    Files: []types.SourceFile{{Path: "app/page.tsx", Content: src}},
//	}
package types
