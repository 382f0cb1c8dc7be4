package bundle

import (
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// FileKind is the role a file plays in a build
type FileKind int

const (
	KindIgnored FileKind = iota
	KindComponent
	KindScript
	KindStylesheet
)

// KindOf classifies one path by suffix
func KindOf(p string) FileKind {
	p = strings.ToLower(p)
	switch {
	case strings.HasSuffix(p, ".tsx"), strings.HasSuffix(p, ".jsx"):
		return KindComponent
	case strings.HasSuffix(p, ".d.ts"):
		return KindIgnored
	case strings.HasSuffix(p, ".ts"), strings.HasSuffix(p, ".js"):
		return KindScript
	case strings.HasSuffix(p, ".css"):
		return KindStylesheet
	default:
		return KindIgnored
	}
}

// Classification partitions project files by their role in a build.
// The three lists are disjoint and preserve input order.
type Classification struct {
	Components  []types.SourceFile
	Scripts     []types.SourceFile
	Stylesheets []types.SourceFile
	Ignored     int

	sources []types.SourceFile
}

// Sources returns components and scripts interleaved in input order, the
// order in which they are registered
func (c Classification) Sources() []types.SourceFile {
	return c.sources
}

// Classify splits files by path suffix. Anything that is not a
// component, script or stylesheet is dropped silently.
func Classify(files []types.SourceFile) Classification {
	var c Classification
	for _, f := range files {
		switch KindOf(f.Path) {
		case KindComponent:
			c.Components = append(c.Components, f)
			c.sources = append(c.sources, f)
		case KindScript:
			c.Scripts = append(c.Scripts, f)
			c.sources = append(c.sources, f)
		case KindStylesheet:
			c.Stylesheets = append(c.Stylesheets, f)
		default:
			c.Ignored++
		}
	}
	return c
}
