package constat

// BinaryGitHash is the Git hash of the constat binary file which is executing.
var BinaryGitHash = "<unknown>"

// BinaryVersion is constat's API version.
var BinaryVersion = 1
