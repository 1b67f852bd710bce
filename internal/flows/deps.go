package flows

// Deps groups flow dependency sets. The client builds this once and hands
// each set to the matching flow.
type Deps struct {
	Refresh RefreshDeps
	Logout  LogoutDeps
}
