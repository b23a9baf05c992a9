package protocol

import "fmt"

// SystemPrompt describes the assistant's role for a remote desktop of the
// given resolution. Every coordinate the model reports is interpreted
// against this resolution.
func SystemPrompt(width, height int) string {
	return fmt.Sprintf(`You are a screen-reading assistant for automating a Windows application over a remote desktop session.
Each request includes a screenshot of the remote desktop at %dx%d resolution.
Coordinates are pixels: x grows to the right from 0 to %d, y grows downward from 0 to %d.
Answer in the exact format the request asks for, with no extra commentary, no markdown, and no explanation unless the format allows one.`,
		width, height, width-1, height-1)
}

// ExpectPrompt asks whether the screen matches a description.
func ExpectPrompt(description string) string {
	return fmt.Sprintf(`Look at the screenshot and decide whether it matches this description: "%s"
Respond with exactly one word on the first line:
MATCH if the screen clearly matches the description.
NO_MATCH if the screen clearly does not match.
UNCERTAIN if you cannot tell.`, description)
}

// LocatePrompt asks for the centre coordinates of a described element.
func LocatePrompt(target string) string {
	return fmt.Sprintf(`Find this element on the screenshot: "%s"
If you can see it, respond with the pixel coordinates of its centre as two integers separated by a comma, for example: 412,305
If you cannot find it, respond with NOT_FOUND: followed by a short reason.`, target)
}

// SelectOptionPrompt asks for the coordinates of an option inside an open
// dropdown. It is the second model call of a select action, made after the
// dropdown has been clicked open.
func SelectOptionPrompt(value, target string) string {
	return fmt.Sprintf(`The dropdown "%s" has just been opened on the screenshot.
Find the option "%s" in the open list.
If you can see it, respond with the pixel coordinates of its centre as two integers separated by a comma, for example: 412,305
If you cannot find it, respond with NOT_FOUND: followed by a short reason.`, target, value)
}

// ExtractPrompt asks for the textual value of a described field.
func ExtractPrompt(source string) string {
	return fmt.Sprintf(`Read the value of this field or region on the screenshot: "%s"
Respond with the value exactly as displayed, and nothing else.
If the field is visible but blank, respond with EMPTY.
If you cannot find the field, respond with NOT_FOUND.`, source)
}

// ConditionPrompt asks a yes/no question about the screen.
func ConditionPrompt(condition string) string {
	return fmt.Sprintf(`Look at the screenshot. Does the screen show the following: "%s"?
Respond with exactly YES or NO on the first line.`, condition)
}
