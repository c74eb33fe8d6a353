package validators

import "go.mongodb.org/mongo-driver/bson"

var ClassroomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_number",
			"name",
			"capacity",
			"total_hours",
			"hours_left",
			"is_available",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"room_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 20,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"capacity": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  500,
			},

			"total_hours": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
			},

			"hours_left": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
			},

			"is_available": bson.M{
				"bsonType": "bool",
			},

			"booked_by": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
