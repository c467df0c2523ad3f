package repository

import (
	"strings"
)

// Table column definitions. These must match the migrations exactly; queries
// are built from them so the two cannot drift.

// BusinessColumns defines the columns read from the businesses table.
var BusinessColumns = TableColumns{
	TableName: "businesses",
	Columns: []string{
		"id",
		"name",
		"slug",
		"category",
		"description",
		"price",
		"monthly_potential",
		"status",
		"roi_estimation_months",
		"time_required_weekly",
		"benefits",
		"created_at",
	},
}

// ConversationColumns defines the columns of the chat_conversations table.
var ConversationColumns = TableColumns{
	TableName: "chat_conversations",
	Columns: []string{
		"session_id",
		"user_message",
		"assistant_response",
		"page",
		"url",
		"needs_human",
		"created_at",
	},
}

// FunnelColumns defines the columns of the conversion_funnels table.
var FunnelColumns = TableColumns{
	TableName: "conversion_funnels",
	Columns: []string{
		"session_id",
		"funnel_stage",
		"businesses_viewed",
		"topics_discussed",
		"objections",
		"ready_to_buy",
		"url",
		"created_at",
	},
}

// FAQColumns defines the columns read from the chatbot_faqs table.
var FAQColumns = TableColumns{
	TableName: "chatbot_faqs",
	Columns: []string{
		"id",
		"question",
		"answer",
		"category",
		"custom_suggestions",
		"active",
	},
}

// AcquisitionColumns defines the columns of the acquisition_requests table.
var AcquisitionColumns = TableColumns{
	TableName: "acquisition_requests",
	Columns: []string{
		"id",
		"business_id",
		"session_id",
		"name",
		"email",
		"phone",
		"budget",
		"message",
		"status",
		"created_at",
	},
}

// TableColumns provides helper methods for generating SQL fragments.
type TableColumns struct {
	TableName string
	Columns   []string
}

// Select returns a comma-separated list of columns for SELECT queries.
// Example: "id, name, email, created_at"
func (tc TableColumns) Select() string {
	return strings.Join(tc.Columns, ", ")
}

// Placeholders returns numbered placeholders for the columns.
// Example: "$1, $2, $3, $4" for 4 columns
func (tc TableColumns) Placeholders() string {
	placeholders := make([]string, len(tc.Columns))
	for i := range tc.Columns {
		placeholders[i] = "$" + itoa(i+1)
	}
	return strings.Join(placeholders, ", ")
}

// Insert returns "INSERT INTO table (cols) VALUES ($1, ...)".
func (tc TableColumns) Insert() string {
	return "INSERT INTO " + tc.TableName + " (" + tc.Select() + ") VALUES (" + tc.Placeholders() + ")"
}

// Count returns the number of columns.
func (tc TableColumns) Count() int {
	return len(tc.Columns)
}

// itoa converts a non-negative integer to a string without importing strconv.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var result []byte
	for i > 0 {
		result = append([]byte{byte('0' + i%10)}, result...)
		i /= 10
	}
	return string(result)
}
