// Package shell turns an entered line into a pipeline the shell can launch.
//
// Only a small piece of the POSIX shell language is understood, see
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
// 1. The shell breaks the input into tokens: words and operators. Quoting
// removes the special meaning of operator characters.
//
// 2. The shell parses the tokens into simple commands joined by `|`.
//
// 3. The shell performs redirection (`<` and `>`) and removes redirection
// operators and their operands from the parameter list.
//
// 4. A trailing `&` runs the pipeline without waiting for it.
//
// Expansions, compound commands and functions aren't supported.
package shell
