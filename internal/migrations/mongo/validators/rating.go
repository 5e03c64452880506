package validators

import "go.mongodb.org/mongo-driver/bson"

var ratingDimension = bson.M{
	"bsonType": "int",
	"minimum":  1,
	"maximum":  5,
}

var RatingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"equipment_id",
			"makerspace_id",
			"user_id",
			"overall",
			"reliability",
			"ease_of_use",
			"condition",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"equipment_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"makerspace_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"overall":     ratingDimension,
			"reliability": ratingDimension,
			"ease_of_use": ratingDimension,
			"condition":   ratingDimension,

			"text_feedback": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"status": bson.M{
				"enum": []string{"pending", "approved", "rejected"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
