package chatclient

import "chatter/chatproto"

// Login authenticates username with the server, the Go analogue of
// authentication.py's login().
func (c *Client) Login(username string) error {
	_, err := c.Do(chatproto.MethodLogin, username, map[string]string{"username": username})
	return err
}

// SendMessage stores a message as username.
func (c *Client) SendMessage(username, message string) error {
	_, err := c.Do(chatproto.MethodMessage, username, map[string]string{
		"username": username,
		"message":  message,
	})
	return err
}

// FetchMessages retrieves messages newer than sinceUnixSeconds for
// username. The raw Data payload (a JSON array) is returned
// unparsed — callers decode it into whatever shape they need.
func (c *Client) FetchMessages(username string, sinceUnixSeconds float64) (chatproto.Response, error) {
	return c.Do(chatproto.MethodFetch, username, map[string]any{
		"username":  username,
		"timestamp": sinceUnixSeconds,
	})
}

// Exit logs username out.
func (c *Client) Exit(username string) error {
	_, err := c.Do(chatproto.MethodExit, username, map[string]string{"username": username})
	return err
}
