// Package inventory holds the typed stock snapshot produced by each poll and
// the per-category change policy used to decide which subscribers to alert.
package inventory
