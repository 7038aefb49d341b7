package notify

import "errors"

// errDeliveryFailed is returned by MockNotifier for volunteers marked to fail.
var errDeliveryFailed = errors.New("notify: delivery failed")
