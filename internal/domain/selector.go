package domain

// ChooseArtifact picks exactly one artifact from the registry's release
// file list. Source distributions are required by downstream source-level
// analysis, so sdist wins over bdist_wheel; within a type the first-listed
// file wins (registry listing order, no secondary sort). Returns nil when
// no candidate has a usable type.
func ChooseArtifact(name string, candidates []ArtifactFile) *ResolvedArtifact {
	for _, packageType := range []string{PackageTypeSDist, PackageTypeWheel} {
		for _, f := range candidates {
			if f.PackageType != packageType || f.URL == "" {
				continue
			}
			return &ResolvedArtifact{
				Name:         name,
				URL:          f.URL,
				Filename:     f.Filename,
				DeclaredSize: f.Size,
			}
		}
	}
	return nil
}
