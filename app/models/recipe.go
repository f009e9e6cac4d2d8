package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ingredient is one order-significant entry of a recipe's ingredient list.
// Quantity stays free-text ("2", "200g", "une pincée").
type Ingredient struct {
	Name     string `bson:"name" json:"name"`
	Quantity string `bson:"quantity" json:"quantity"`
}

// AuthorRef is the read-time join of a recipe's author.
// Populated by the repository; never persisted on the recipe document.
type AuthorRef struct {
	ID    primitive.ObjectID `bson:"-" json:"id"`
	Email string             `bson:"-" json:"email"`
}

// Recipe is a user-owned content record. The author field is immutable after
// creation and is not a live foreign key: deleting the account orphans the
// recipe rather than cascading.
type Recipe struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Ingredients []Ingredient       `bson:"ingredients" json:"ingredients"`
	Steps       []string           `bson:"steps" json:"steps"`
	PrepTime    int                `bson:"prepTime" json:"prepTime"` // minutes
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	PhotoURL    string             `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	PDFURL      string             `bson:"pdfUrl,omitempty" json:"pdfUrl,omitempty"`
	AuthorID    primitive.ObjectID `bson:"author" json:"-"`
	Author      *AuthorRef         `bson:"-" json:"author,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
