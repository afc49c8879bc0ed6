package domain

// Category is a user-defined grouping of library manga.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int64  `json:"order"`
	Flags int64  `json:"flags"`
}
