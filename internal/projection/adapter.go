package projection

// NewAdapter returns the Projector used by the clustering stage. A real
// UMAP implementation would be selected here for N>=2 and PCAProjector used
// only as the small-N or UMAP-unavailable fallback; since this dependency
// set carries no UMAP package, PCAProjector serves every case.
func NewAdapter() Projector {
	return PCAProjector{}
}
