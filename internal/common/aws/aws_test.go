// internal/common/aws/aws_test.go
package aws

import (
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTextEmail(t *testing.T) {
	input := buildTextEmail("no-reply@example.com", []string{"hr@example.com"}, "New application", "Alice Doe applied")

	assert.Equal(t, "no-reply@example.com", awssdk.ToString(input.Source))
	assert.Equal(t, []string{"hr@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "New application", awssdk.ToString(input.Message.Subject.Data))
	assert.Equal(t, "Alice Doe applied", awssdk.ToString(input.Message.Body.Text.Data))
	assert.Nil(t, input.Message.Body.Html)
}

func TestBuildPublish(t *testing.T) {
	input := buildPublish("arn:aws:sns:us-east-1:123:applications", "", "{}", map[string]string{"status": "new"})

	assert.Equal(t, "arn:aws:sns:us-east-1:123:applications", awssdk.ToString(input.TopicArn))
	assert.Nil(t, input.Subject)
	require.Contains(t, input.MessageAttributes, "status")
	assert.Equal(t, "new", awssdk.ToString(input.MessageAttributes["status"].StringValue))
	assert.Equal(t, "String", awssdk.ToString(input.MessageAttributes["status"].DataType))
}

func TestBuildPublish_NoAttributes(t *testing.T) {
	input := buildPublish("arn", "subject", "body", nil)

	assert.Nil(t, input.MessageAttributes)
	assert.Equal(t, "subject", awssdk.ToString(input.Subject))
}
