package proc

// signalHelper has no signal verbs on Windows.
func signalHelper(string) {}
