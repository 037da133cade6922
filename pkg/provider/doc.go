// Package provider defines the normalized compute-provider client used by the
// lifecycle controller. Implementations wrap a single cloud API and translate
// its instance states and failures into the shapes defined here.
package provider
