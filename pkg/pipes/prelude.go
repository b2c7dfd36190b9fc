package pipes

// DefaultPrelude holds the macros stored on startup unless WithNoStdlib is
// given. Macros already in the store keep their stored definition.
const DefaultPrelude = `
macros:
  - name: shout
    kind: pipe
    code: "upper > replace from=. to=!"
    desc: Uppercase and exclaim.
  - name: list
    kind: pipe
    code: 'join s="{$sep}"'
    desc: Join the items with a separator.
    params:
      - name: sep
        default: ", "
  - name: words
    kind: pipe
    code: "split > sort"
    desc: Split into sorted words.
  - name: coin
    kind: source
    code: "{choose heads,tails}"
    desc: Flip a coin.
  - name: dice
    kind: source
    code: "{choose 1,2,3,4,5,6}"
    desc: Roll a six-sided die.
`
