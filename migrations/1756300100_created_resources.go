package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_resources_01",
			"name": "resources",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_name",
					"name": "name",
					"type": "text",
					"required": true,
					"presentable": true
				},
				{
					"id": "text_ip_address",
					"name": "ip_address",
					"type": "text",
					"required": false
				},
				{
					"id": "select_class",
					"name": "class",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["windows", "linux", "ubuntu", "macos"]
				},
				{
					"id": "select_status",
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["available", "maintenance"]
				},
				{
					"id": "bool_disabled",
					"name": "disabled",
					"type": "bool"
				},
				{
					"id": "autodate_created",
					"name": "created",
					"type": "autodate",
					"onCreate": true
				},
				{
					"id": "autodate_updated",
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_resources_name ON resources (name)"
			],
			"listRule": "",
			"viewRule": "",
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
		collection, err := app.FindCollectionByNameOrId("pbc_resources_01")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
