package ports

// Location reports the URL the visitor's tab currently shows.
type Location interface {
	Current() string
}
