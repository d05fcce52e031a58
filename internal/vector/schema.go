package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const (
	// ClassChunk holds one embedding record per document chunk.
	ClassChunk = "DocumentChunk"
	// ClassSummary holds background-embedded document summaries.
	ClassSummary = "DocumentSummary"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks that the required classes exist and creates them,
// or adds any missing properties to existing classes.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	chunkProps := []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"string"}}, // UUID as string (exact match)
		{Name: "userId", DataType: []string{"string"}},
		{Name: "threadId", DataType: []string{"string"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "page", DataType: []string{"int"}},
		{Name: "sectionTitle", DataType: []string{"text"}},
		{Name: "charOffset", DataType: []string{"int"}},
	}
	if err := ensureClass(ctx, client, ClassChunk, "A positioned chunk of a document's extracted text", chunkProps); err != nil {
		return err
	}

	summaryProps := []*models.Property{
		{Name: "summary", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"string"}},
		{Name: "userId", DataType: []string{"string"}},
	}
	return ensureClass(ctx, client, ClassSummary, "An embedded document summary", summaryProps)
}

func ensureClass(ctx context.Context, client SchemaClient, className, description string, properties []*models.Property) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: description,
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
