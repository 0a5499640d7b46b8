package services

import (
	"context"
	"log"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"reservation-system/models"
)

// Inventory resolves resource metadata. The engine consults it on join
// and for dashboard views; queue and lease state never live here.
type Inventory interface {
	Resource(ctx context.Context, id string) (*models.Resource, error)
	Resources(ctx context.Context) ([]*models.Resource, error)
}

// ActivityLogger records user-visible queue and lease transitions for
// the admin audit trail. Logging is best-effort.
type ActivityLogger interface {
	LogActivity(userID, resourceID, action, detail string)
}

// PBInventory reads resources from the "resources" collection and writes
// audit entries into "activity_log".
type PBInventory struct {
	app core.App
}

func NewPBInventory(app core.App) *PBInventory {
	return &PBInventory{app: app}
}

func (p *PBInventory) Resource(ctx context.Context, id string) (*models.Resource, error) {
	record, err := p.app.FindRecordById("resources", id)
	if err != nil {
		return nil, err
	}
	return recordToResource(record), nil
}

func (p *PBInventory) Resources(ctx context.Context) ([]*models.Resource, error) {
	records, err := p.app.FindAllRecords("resources", dbx.HashExp{"disabled": false})
	if err != nil {
		return nil, err
	}
	resources := make([]*models.Resource, 0, len(records))
	for _, record := range records {
		resources = append(resources, recordToResource(record))
	}
	return resources, nil
}

func (p *PBInventory) LogActivity(userID, resourceID, action, detail string) {
	collection, err := p.app.FindCollectionByNameOrId("activity_log")
	if err != nil {
		log.Printf("Error finding activity_log collection: %v", err)
		return
	}
	record := core.NewRecord(collection)
	record.Set("user_id", userID)
	record.Set("resource_id", resourceID)
	record.Set("action", action)
	record.Set("detail", detail)
	if err := p.app.Save(record); err != nil {
		log.Printf("Error writing activity log: %v", err)
	}
}

func recordToResource(record *core.Record) *models.Resource {
	return &models.Resource{
		ID:        record.Id,
		Name:      record.GetString("name"),
		IPAddress: record.GetString("ip_address"),
		Class:     models.ResourceClass(record.GetString("class")),
		Status:    models.ResourceStatus(record.GetString("status")),
		Disabled:  record.GetBool("disabled"),
	}
}
