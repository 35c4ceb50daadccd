package models

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion,omitempty"`
}

type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion,omitempty"`
	Price       float64 `json:"precio"`
	Image       string  `json:"imagen,omitempty"`
	Category    string  `json:"categoria,omitempty"`
	Stock       int     `json:"stock"`
}
