package graph

import (
	"encoding/base64"

	"github.com/shineum/mailbatch/internal/email"
)

type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject      string           `json:"subject"`
	Body         messageBody      `json:"body"`
	ToRecipients []recipient      `json:"toRecipients"`
	CcRecipients []recipient      `json:"ccRecipients,omitempty"`
	Attachments  []fileAttachment `json:"attachments,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type graphErrorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// recipients turns an address field into Graph recipient objects.
func recipients(field string) []recipient {
	addrs := email.SplitAddresses(field)
	out := make([]recipient, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	return out
}

// buildSendMailRequest converts a mail record into a sendMail request body,
// reading the attachment file if the record names one.
func buildSendMailRequest(msg *email.Email) (*sendMailRequest, error) {
	att, err := email.LoadAttachment(msg)
	if err != nil {
		return nil, err
	}

	m := sendMailMessage{
		Subject: msg.Subject,
		Body: messageBody{
			ContentType: "text",
			Content:     msg.Body,
		},
		ToRecipients: recipients(msg.To),
		CcRecipients: recipients(msg.Cc),
	}

	if att != nil {
		m.Attachments = []fileAttachment{{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentType:  att.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
		}}
	}

	return &sendMailRequest{Message: m, SaveToSentItems: true}, nil
}
