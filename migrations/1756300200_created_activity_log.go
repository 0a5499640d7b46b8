package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_activity_log1",
			"name": "activity_log",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_user_id",
					"name": "user_id",
					"type": "text",
					"required": true
				},
				{
					"id": "text_resource_id",
					"name": "resource_id",
					"type": "text",
					"required": true
				},
				{
					"id": "text_action",
					"name": "action",
					"type": "text",
					"required": true
				},
				{
					"id": "text_detail",
					"name": "detail",
					"type": "text"
				},
				{
					"id": "autodate_created",
					"name": "created",
					"type": "autodate",
					"onCreate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_activity_log_resource ON activity_log (resource_id)",
				"CREATE INDEX idx_activity_log_user ON activity_log (user_id)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_activity_log1")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
