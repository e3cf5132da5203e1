package cache

// ProjectAllKey caches the platform's project.all response. There is exactly
// one list (it is not scoped per actor), so one constant key is all this
// package's only caller, platform.CachedClient, needs.
const ProjectAllKey = "project:all"
