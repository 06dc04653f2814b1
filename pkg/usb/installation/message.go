package installation

type ClientOptions struct {
	ApplicationType  string   `plist:"ApplicationType,omitempty"`
	ReturnAttributes []string `plist:"ReturnAttributes,omitempty"`
}

type Command struct {
	Command       string         `plist:"Command"`
	ClientOptions *ClientOptions `plist:"ClientOptions,omitempty"`
}

func NewCommand(cmd string, returnAttributes ...string) Command {
	rb := Command{
		Command: cmd,
	}
	if len(returnAttributes) > 0 {
		rb.ClientOptions = &ClientOptions{
			ReturnAttributes: returnAttributes,
		}
	}
	return rb
}

// WithApplicationType restricts the command to one class of apps (User, System, ...).
func (c Command) WithApplicationType(appType string) Command {
	if appType == "" {
		return c
	}
	if c.ClientOptions == nil {
		c.ClientOptions = &ClientOptions{}
	}
	c.ClientOptions.ApplicationType = appType
	return c
}

type BrowseRequest struct {
	Command
}

type BrowseResult struct {
	CurrentList   []map[string]any `plist:"CurrentList,omitempty"`
	CurrentIndex  int              `plist:"CurrentIndex,omitempty"`
	CurrentAmount int              `plist:"CurrentAmount,omitempty"`
	Total         int              `plist:"Total,omitempty"`
	Status        string           `plist:"Status,omitempty"`
	Error         string           `plist:"Error,omitempty"`
}

type InstallRequest struct {
	Command
	PackagePath string `plist:"PackagePath"`
}

type ProgressEvent struct {
	Status           string `plist:"Status,omitempty"`
	PercentComplete  int    `plist:"PercentComplete,omitempty"`
	Error            string `plist:"Error,omitempty"`
	ErrorDescription string `plist:"ErrorDescription,omitempty"`
}
